// checkpoint creates CheckpointIO which stores and restores the trees
// produced by the stages of the search.
package checkpoint

import (
	"encoding/json"
	"time"

	"github.com/op/go-logging"

	bolt "go.etcd.io/bbolt"
)

// log is the global logging variable.
var log = logging.MustGetLogger("checkpoint")

// MAIN is the bucket name for all the stages.
var MAIN = []byte("main")

// Stage names.
const (
	StageStart  = "start"
	StageNNI    = "nni"
	StageReroot = "reroot"
)

// StageData is the state of the search after a stage or during it.
type StageData struct {
	Stage  string
	Newick string
	Score  float64
	Sweep  int
	Final  bool
}

// CheckpointIO saves and loads stage checkpoints. Keys are prefixed,
// so runs with different settings can share a database.
type CheckpointIO struct {
	db      *bolt.DB
	prefix  []byte
	last    time.Time
	seconds float64
}

// NewCheckpointIO creates a new CheckpointIO. A nil database disables
// checkpointing.
func NewCheckpointIO(db *bolt.DB, prefix []byte, seconds float64) (s *CheckpointIO) {
	s = &CheckpointIO{
		db:      db,
		prefix:  prefix,
		seconds: seconds,
	}
	return
}

func (s *CheckpointIO) key(stage string) []byte {
	key := make([]byte, 0, len(s.prefix)+1+len(stage))
	key = append(key, s.prefix...)
	key = append(key, '/')
	return append(key, stage...)
}

// Save saves the stage checkpoint.
func (s *CheckpointIO) Save(data *StageData) error {
	// Even if saving fails, we do not want to run this code too often.
	s.SetNow()
	dataB, err := json.Marshal(data)
	if err != nil {
		log.Error("Error serializing checkpoint", err)
		return err
	}
	err = SaveData(s.db, s.key(data.Stage), dataB)
	if err != nil {
		log.Error("Error saving checkpoint", err)
	}
	return err
}

// Load returns the checkpoint of the stage or nil if there is none.
func (s *CheckpointIO) Load(stage string) (*StageData, error) {
	var data *StageData

	b, err := LoadData(s.db, s.key(stage))

	if err != nil || b == nil {
		return nil, err
	}

	err = json.Unmarshal(b, &data)

	if err != nil {
		return nil, err
	}

	if data == nil || data.Newick == "" {
		return nil, nil
	}

	if data.Final {
		log.Noticef("Found finished %s checkpoint (score=%v)", stage, data.Score)
	} else {
		log.Noticef("Found unfinished %s checkpoint (sweep=%v, score=%v)", stage, data.Sweep, data.Score)
	}

	return data, nil
}

// Old returns true if last checkpoint save time too long ago.
func (s *CheckpointIO) Old() bool {
	return time.Since(s.last).Seconds() > s.seconds
}

// SetNow sets last checkpoint time to now.
func (s *CheckpointIO) SetNow() {
	s.last = time.Now()
}

// SaveData saves values in bolt database.
func SaveData(db *bolt.DB, key []byte, data []byte) error {
	if db == nil {
		return nil
	}
	err := db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(MAIN)
		if err != nil {
			return err
		}

		err = b.Put(key, data)
		return err
	})
	return err
}

// LoadData loads data from bolt database. The returned slice is a copy
// valid outside of the transaction.
func LoadData(db *bolt.DB, key []byte) ([]byte, error) {
	var data []byte
	if db == nil {
		return nil, nil
	}
	err := db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(MAIN)
		if b == nil {
			return nil
		}

		if v := b.Get(key); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}
