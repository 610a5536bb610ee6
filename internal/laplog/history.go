package laplog

import (
	"encoding/binary"
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.etcd.io/bbolt"
)

// History keeps every completed lap and the best lap for each car, track and layout.
type History struct {
	db *bbolt.DB
}

type LapRecord struct {
	SessionID   string
	DriverName  string
	CarName     string
	TrackName   string
	TrackConfig string

	Lap        uint32
	LapTime    time.Duration
	Rows       int
	File       string
	RecordedAt time.Time
}

var (
	lapsBucketName     = []byte("laps")
	bestLapsBucketName = []byte("bestLaps")

	ErrNoLapsRecorded = errors.New("laplog: no laps recorded")
)

func OpenHistory(path string) (*History, error) {
	db, err := bbolt.Open(path, 0644, &bbolt.Options{Timeout: time.Second})

	if err != nil {
		return nil, errors.Wrapf(err, "laplog: could not open lap history at %s", path)
	}

	return &History{db: db}, nil
}

func (h *History) Close() error {
	return h.db.Close()
}

func historyKey(car, track, config string) []byte {
	return []byte(strings.Join([]string{car, track, config}, "|"))
}

func (h *History) encode(data interface{}) ([]byte, error) {
	return json.Marshal(data)
}

func (h *History) decode(data []byte, out interface{}) error {
	return json.Unmarshal(data, out)
}

func (h *History) bucket(tx *bbolt.Tx, name []byte, key []byte) (*bbolt.Bucket, error) {
	if !tx.Writable() {
		parent := tx.Bucket(name)

		if parent == nil {
			return nil, bbolt.ErrBucketNotFound
		}

		if key == nil {
			return parent, nil
		}

		bkt := parent.Bucket(key)

		if bkt == nil {
			return nil, bbolt.ErrBucketNotFound
		}

		return bkt, nil
	}

	parent, err := tx.CreateBucketIfNotExists(name)

	if err != nil || key == nil {
		return parent, err
	}

	return parent.CreateBucketIfNotExists(key)
}

// RecordLap stores a completed lap and reports whether it is a new best. Laps with no
// time, such as an out lap the game did not time, are stored but never count as best.
func (h *History) RecordLap(record LapRecord) (personalBest bool, err error) {
	if record.RecordedAt.IsZero() {
		record.RecordedAt = time.Now()
	}

	key := historyKey(record.CarName, record.TrackName, record.TrackConfig)

	err = h.db.Update(func(tx *bbolt.Tx) error {
		laps, err := h.bucket(tx, lapsBucketName, key)

		if err != nil {
			return err
		}

		encoded, err := h.encode(record)

		if err != nil {
			return err
		}

		seq, err := laps.NextSequence()

		if err != nil {
			return err
		}

		id := make([]byte, 8)
		binary.BigEndian.PutUint64(id, seq)

		if err := laps.Put(id, encoded); err != nil {
			return err
		}

		if record.LapTime <= 0 {
			return nil
		}

		bests, err := h.bucket(tx, bestLapsBucketName, nil)

		if err != nil {
			return err
		}

		if existing := bests.Get(key); existing != nil {
			var best LapRecord

			if err := h.decode(existing, &best); err != nil {
				return err
			}

			if best.LapTime <= record.LapTime {
				return nil
			}
		}

		personalBest = true

		return bests.Put(key, encoded)
	})

	return personalBest, err
}

func (h *History) BestLap(car, track, config string) (*LapRecord, error) {
	var best *LapRecord

	err := h.db.View(func(tx *bbolt.Tx) error {
		bkt, err := h.bucket(tx, bestLapsBucketName, nil)

		if err == bbolt.ErrBucketNotFound {
			return ErrNoLapsRecorded
		} else if err != nil {
			return err
		}

		data := bkt.Get(historyKey(car, track, config))

		if data == nil {
			return ErrNoLapsRecorded
		}

		return h.decode(data, &best)
	})

	return best, err
}

// Laps lists recorded laps for a car, track and layout, oldest first.
func (h *History) Laps(car, track, config string) ([]*LapRecord, error) {
	var laps []*LapRecord

	err := h.db.View(func(tx *bbolt.Tx) error {
		bkt, err := h.bucket(tx, lapsBucketName, historyKey(car, track, config))

		if err == bbolt.ErrBucketNotFound {
			return nil
		} else if err != nil {
			return err
		}

		return bkt.ForEach(func(k, v []byte) error {
			var lap *LapRecord

			if err := h.decode(v, &lap); err != nil {
				return err
			}

			laps = append(laps, lap)

			return nil
		})
	})

	return laps, err
}

// Recorder returns a LapCompletedFunc that stores each lap, logging rather than
// returning failures so a broken history never stops lap files being written.
func (h *History) Recorder(sessionID string, logger logrus.FieldLogger) LapCompletedFunc {
	return func(lap LapSummary) {
		personalBest, err := h.RecordLap(LapRecord{
			SessionID:   sessionID,
			DriverName:  lap.Session.DriverName,
			CarName:     lap.Session.CarName,
			TrackName:   lap.Session.TrackName,
			TrackConfig: lap.Session.TrackConfig,
			Lap:         lap.Lap,
			LapTime:     lap.LapTime,
			Rows:        lap.Rows,
			File:        lap.File,
			RecordedAt:  lap.CompletedAt,
		})

		if err != nil {
			logger.WithError(err).Errorf("Could not record lap %d in history", lap.Lap)
			return
		}

		if personalBest {
			logger.Infof("New personal best for %s at %s: %s", lap.Session.CarName, lap.Session.TrackName, lap.LapTime)
		}
	}
}
