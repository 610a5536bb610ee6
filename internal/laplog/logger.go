package laplog

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"justapengu.in/actelemetry/pkg/acudp"
)

const (
	DefaultOutputDirectory   = "out"
	DefaultMovementThreshold = 1.0

	fileExtension   = ".txt"
	timestampFormat = "20060102T150405.000000"
)

// Fields are the columns of every lap file, in order.
var Fields = []string{"lapTime", "speed_Mph", "gas", "brake", "steer", "gear", "x", "y", "z"}

// names from the game may carry NUL padding when a field has no terminator.
var fileNameReplacer = strings.NewReplacer(" ", "_", "/", "_", `\`, "_", "\x00", "")

// ErrNoLapFile is returned when a row arrives before any lap file has been opened.
var ErrNoLapFile = errors.New("laplog: no lap file open")

type Config struct {
	OutputDirectory string
	SessionStart    time.Time

	// MovementThreshold is the distance, in world units, a car must move from the last
	// logged update before another row is written.
	MovementThreshold float64
}

type Decision uint8

const (
	DecisionDropped Decision = iota
	DecisionNewFile
	DecisionNewLap
	DecisionRow
)

func (d Decision) String() string {
	switch d {
	case DecisionDropped:
		return "dropped"
	case DecisionNewFile:
		return "new_file"
	case DecisionNewLap:
		return "new_lap"
	case DecisionRow:
		return "row"
	default:
		return "unknown"
	}
}

// LapSummary describes a lap file once the lap counter has moved past it.
type LapSummary struct {
	Session     acudp.SessionInfo
	Lap         uint32
	NextLap     uint32
	LapTime     time.Duration
	BestLap     time.Duration
	Rows        int
	File        string
	CompletedAt time.Time
}

type LapCompletedFunc func(lap LapSummary)

type Status struct {
	Session      acudp.SessionInfo
	SessionStart time.Time
	CurrentLap   uint32
	CurrentFile  string
	Rows         int
	TotalRows    int
	Files        []string
	LastUpdate   *acudp.Update
}

// LapLogger writes updates to one file per lap, skipping updates where the car has
// barely moved since the last one written.
type LapLogger struct {
	session acudp.SessionInfo
	config  Config
	logger  logrus.FieldLogger

	mutex       sync.Mutex
	lastEmitted *acudp.Update
	file        *os.File
	currentFile string
	rows        int
	totalRows   int
	files       []string

	lapCompletedFuncs []LapCompletedFunc
}

func NewLapLogger(session acudp.SessionInfo, config Config, logger logrus.FieldLogger) *LapLogger {
	if config.OutputDirectory == "" {
		config.OutputDirectory = DefaultOutputDirectory
	}

	if config.MovementThreshold <= 0 {
		config.MovementThreshold = DefaultMovementThreshold
	}

	if config.SessionStart.IsZero() {
		config.SessionStart = time.Now()
	}

	return &LapLogger{
		session: session,
		config:  config,
		logger:  logger,
	}
}

// OnLapCompleted registers fn to be called, outside of the logger's lock, each time a
// lap boundary closes a file.
func (l *LapLogger) OnLapCompleted(fn LapCompletedFunc) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.lapCompletedFuncs = append(l.lapCompletedFuncs, fn)
}

func (l *LapLogger) Handle(u acudp.Update) (Decision, error) {
	decision, completed, err := l.handle(u)

	if err != nil {
		return decision, err
	}

	if completed != nil {
		l.mutex.Lock()
		funcs := l.lapCompletedFuncs
		l.mutex.Unlock()

		for _, fn := range funcs {
			fn(*completed)
		}
	}

	return decision, nil
}

func (l *LapLogger) handle(u acudp.Update) (Decision, *LapSummary, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	var decision Decision
	var completed *LapSummary

	switch {
	case l.lastEmitted == nil:
		if err := l.newLap(u); err != nil {
			return DecisionDropped, nil, err
		}

		decision = DecisionNewFile
	case u.LapCount != l.lastEmitted.LapCount:
		completed = &LapSummary{
			Session:     l.session,
			Lap:         l.lastEmitted.LapCount,
			NextLap:     u.LapCount,
			LapTime:     time.Duration(u.LastLap) * time.Millisecond,
			BestLap:     time.Duration(u.BestLap) * time.Millisecond,
			Rows:        l.rows,
			File:        l.currentFile,
			CompletedAt: time.Now(),
		}

		if err := l.newLap(u); err != nil {
			return DecisionDropped, nil, err
		}

		decision = DecisionNewLap
	case u.Position().DistanceTo(l.lastEmitted.Position()) > l.config.MovementThreshold:
		if err := l.writeRow(u); err != nil {
			return DecisionDropped, nil, err
		}

		decision = DecisionRow
	default:
		return DecisionDropped, nil, nil
	}

	l.lastEmitted = &u

	return decision, completed, nil
}

func (l *LapLogger) fileName(lap uint32) string {
	name := strings.Join([]string{
		l.session.DriverName,
		l.session.CarName,
		l.session.TrackName,
		l.session.TrackConfig,
		l.config.SessionStart.Format(timestampFormat),
		strconv.FormatUint(uint64(lap), 10),
	}, "_") + fileExtension

	return fileNameReplacer.Replace(name)
}

func (l *LapLogger) newLap(u acudp.Update) error {
	if err := l.closeFile(); err != nil {
		return err
	}

	path := filepath.Join(l.config.OutputDirectory, l.fileName(u.LapCount))

	f, err := os.Create(path)

	if err != nil {
		return errors.Wrap(err, "laplog: could not create lap file")
	}

	l.file = f
	l.currentFile = path
	l.rows = 0
	l.files = append(l.files, path)

	l.logger.WithField("lap", u.LapCount).Debugf("Writing lap to: %s", path)

	if _, err := f.WriteString(strings.Join(Fields, "\t") + "\n"); err != nil {
		return errors.Wrapf(err, "laplog: could not write header to %s", path)
	}

	return l.writeRow(u)
}

// writeRow goes straight to the file with no buffering, so a crash loses at most the
// row being written.
func (l *LapLogger) writeRow(u acudp.Update) error {
	if l.file == nil {
		return ErrNoLapFile
	}

	if _, err := l.file.WriteString(formatRow(u)); err != nil {
		return errors.Wrapf(err, "laplog: could not write row to %s", l.currentFile)
	}

	l.rows++
	l.totalRows++

	return nil
}

func formatRow(u acudp.Update) string {
	return strings.Join([]string{
		strconv.FormatUint(uint64(u.LapTime), 10),
		formatFloat(u.SpeedMph),
		formatFloat(u.Gas),
		formatFloat(u.Brake),
		formatFloat(u.Steer),
		strconv.FormatUint(uint64(u.Gear), 10),
		formatFloat(u.X),
		formatFloat(u.Y),
		formatFloat(u.Z),
	}, "\t") + "\n"
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', -1, 32)
}

func (l *LapLogger) closeFile() error {
	if l.file == nil {
		return nil
	}

	err := l.file.Close()
	l.file = nil

	if err != nil {
		return errors.Wrapf(err, "laplog: could not close %s", l.currentFile)
	}

	return nil
}

// Close closes the current lap file, if there is one. It is safe to call more than once.
func (l *LapLogger) Close() error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	return l.closeFile()
}

func (l *LapLogger) Status() Status {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	status := Status{
		Session:      l.session,
		SessionStart: l.config.SessionStart,
		CurrentFile:  l.currentFile,
		Rows:         l.rows,
		TotalRows:    l.totalRows,
		Files:        append([]string(nil), l.files...),
	}

	if l.lastEmitted != nil {
		last := *l.lastEmitted
		status.CurrentLap = last.LapCount
		status.LastUpdate = &last
	}

	return status
}
