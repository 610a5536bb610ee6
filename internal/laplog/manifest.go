package laplog

import (
	"fmt"
	"io/ioutil"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"justapengu.in/actelemetry/pkg/acudp"
)

const manifestExtension = ".yml"

// Manifest sits next to a session's lap files and lists them, so a set of laps can be
// picked up later without parsing file names.
type Manifest struct {
	path string

	mutex sync.Mutex
	data  manifestData
}

type manifestData struct {
	SessionID string            `yaml:"session_id"`
	Session   acudp.SessionInfo `yaml:"session"`
	Started   time.Time         `yaml:"started"`
	Finished  *time.Time        `yaml:"finished,omitempty"`
	Fields    []string          `yaml:"fields"`
	Laps      []manifestLap     `yaml:"laps"`
}

type manifestLap struct {
	Lap     uint32 `yaml:"lap"`
	LapTime string `yaml:"lap_time"`
	Rows    int    `yaml:"rows"`
	File    string `yaml:"file"`
}

func NewManifest(session acudp.SessionInfo, config Config) *Manifest {
	if config.OutputDirectory == "" {
		config.OutputDirectory = DefaultOutputDirectory
	}

	name := strings.Join([]string{
		session.DriverName,
		session.CarName,
		session.TrackName,
		session.TrackConfig,
		config.SessionStart.Format(timestampFormat),
	}, "_") + manifestExtension

	return &Manifest{
		path: filepath.Join(config.OutputDirectory, fileNameReplacer.Replace(name)),
		data: manifestData{
			SessionID: uuid.New().String(),
			Session:   session,
			Started:   config.SessionStart,
			Fields:    Fields,
		},
	}
}

func (m *Manifest) SessionID() string {
	return m.data.SessionID
}

func (m *Manifest) Path() string {
	return m.path
}

func (m *Manifest) AddLap(lap LapSummary) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.data.Laps = append(m.data.Laps, manifestLap{
		Lap:     lap.Lap,
		LapTime: formatLapTime(lap.LapTime),
		Rows:    lap.Rows,
		File:    filepath.Base(lap.File),
	})
}

// Finish marks the session as over and lists the lap file that was still open, which
// no lap boundary will ever report. Its lap is untimed.
func (m *Manifest) Finish(finished time.Time, status Status) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.data.Finished = &finished

	if status.CurrentFile == "" {
		return
	}

	file := filepath.Base(status.CurrentFile)

	for _, lap := range m.data.Laps {
		if lap.File == file {
			return
		}
	}

	m.data.Laps = append(m.data.Laps, manifestLap{
		Lap:     status.CurrentLap,
		LapTime: formatLapTime(0),
		Rows:    status.Rows,
		File:    file,
	})
}

func (m *Manifest) Save() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	b, err := yaml.Marshal(m.data)

	if err != nil {
		return errors.Wrap(err, "laplog: could not encode manifest")
	}

	if err := ioutil.WriteFile(m.path, b, 0644); err != nil {
		return errors.Wrapf(err, "laplog: could not write manifest to %s", m.path)
	}

	return nil
}

// formatLapTime renders a lap as m:ss:mmm, or dashes for an untimed lap.
func formatLapTime(d time.Duration) string {
	if d <= 0 {
		return "--:--:---"
	}

	mins := int(d / time.Minute)
	d -= time.Duration(mins) * time.Minute
	secs := int(d / time.Second)
	d -= time.Duration(secs) * time.Second
	milli := d.Milliseconds()

	return fmt.Sprintf("%d:%02d:%03d", mins, secs, milli)
}
