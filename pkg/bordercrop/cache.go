package bordercrop

import (
	"encoding/json"
	"fmt"

	"emperror.dev/errors"
	"github.com/dgraph-io/badger/v4"
	"github.com/golang/snappy"
	"github.com/je4/bordercrop/pkg/border"
	"github.com/je4/utils/v2/pkg/checksum"
	"github.com/je4/utils/v2/pkg/zLogger"
)

// badgerLogger routes badger messages into the zerolog logger
type badgerLogger struct {
	logger zLogger.ZLogger
}

func (bl badgerLogger) Errorf(format string, args ...interface{}) {
	bl.logger.Error().Msgf(format, args...)
}

func (bl badgerLogger) Warningf(format string, args ...interface{}) {
	bl.logger.Warn().Msgf(format, args...)
}

func (bl badgerLogger) Infof(format string, args ...interface{}) {
	bl.logger.Debug().Msgf(format, args...)
}

func (bl badgerLogger) Debugf(format string, args ...interface{}) {
	bl.logger.Debug().Msgf(format, args...)
}

// Cache stores scan results by content digest and scan options
type Cache struct {
	db     *badger.DB
	logger zLogger.ZLogger
}

func NewCache(conf ConfigCache, logger zLogger.ZLogger) (*Cache, error) {
	var opts badger.Options
	if conf.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(conf.Folder)
	}
	opts = opts.WithLogger(badgerLogger{logger: logger})
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open badger database in '%s'", conf.Folder)
	}
	return &Cache{db: db, logger: logger}, nil
}

func (c *Cache) Close() error {
	return errors.Wrap(c.db.Close(), "cannot close badger database")
}

func cacheKey(digest string, opts border.Options) []byte {
	return []byte(fmt.Sprintf("scan-%s-%g-%g", digest, opts.ColorThreshold, opts.LineConsistency))
}

// Get returns nil without error if nothing is cached
func (c *Cache) Get(digest string, opts border.Options) (*border.Result, error) {
	key := cacheKey(digest, opts)
	var result *border.Result
	if err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			return errors.Wrapf(err, "cannot get key %s", key)
		}
		return item.Value(func(val []byte) error {
			data, err := snappy.Decode(nil, val)
			if err != nil {
				return errors.Wrapf(err, "cannot decompress value of %s", key)
			}
			result = &border.Result{}
			if err := json.Unmarshal(data, result); err != nil {
				return errors.Wrapf(err, "cannot unmarshal %s", string(data))
			}
			return nil
		})
	}); err != nil {
		return nil, errors.WithStack(err)
	}
	return result, nil
}

func (c *Cache) Put(digest string, opts border.Options, result border.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return errors.Wrapf(err, "cannot marshal %v", result)
	}
	key := cacheKey(digest, opts)
	if err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, snappy.Encode(nil, data))
	}); err != nil {
		return errors.Wrapf(err, "cannot store %s", key)
	}
	return nil
}

// digest is the sha512 checksum of the image content
func digest(data []byte) (string, error) {
	cw, err := checksum.NewChecksumWriter([]checksum.DigestAlgorithm{checksum.DigestSHA512})
	if err != nil {
		return "", errors.Wrap(err, "cannot create checksum writer")
	}
	if _, err := cw.Write(data); err != nil {
		cw.Close()
		return "", errors.Wrap(err, "cannot write to checksum writer")
	}
	if err := cw.Close(); err != nil {
		return "", errors.Wrap(err, "cannot close checksum writer")
	}
	checksums, err := cw.GetChecksums()
	if err != nil {
		return "", errors.Wrap(err, "cannot get checksums")
	}
	return checksums[checksum.DigestSHA512], nil
}
