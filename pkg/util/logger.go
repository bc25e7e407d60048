package util

import (
	"crypto/tls"
	"io"
	"os"

	"emperror.dev/errors"
	"github.com/je4/utils/v2/pkg/stashconfig"
	"github.com/je4/utils/v2/pkg/zLogger"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/pkgerrors"
	ublogger "gitlab.switch.ch/ub-unibas/go-ublogger/v2"
	"go.ub.unibas.ch/cloud/certloader/v2/pkg/loader"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// CreateLogger builds the host tagged multi logger (console, optional file and
// logstash). The returned closer releases file, logstash and tls loader.
func CreateLogger(conf *stashconfig.Config) (zLogger.ZLogger, io.Closer, error) {
	hostname, err := os.Hostname()
	if err != nil {
		return nil, nil, errors.Wrap(err, "cannot get hostname")
	}

	var loggerTLSConfig *tls.Config
	var loggerLoader io.Closer
	if conf.Stash.TLS != nil {
		loggerTLSConfig, loggerLoader, err = loader.CreateClientLoader(conf.Stash.TLS, nil)
		if err != nil {
			return nil, nil, errors.Wrap(err, "cannot create client loader")
		}
	}

	zerolog.ErrorStackMarshaler = pkgerrors.MarshalStack
	_logger, _logstash, _logfile, err := ublogger.CreateUbMultiLoggerTLS(conf.Level, conf.File,
		ublogger.SetDataset(conf.Stash.Dataset),
		ublogger.SetLogStash(conf.Stash.LogstashHost, conf.Stash.LogstashPort, conf.Stash.Namespace, conf.Stash.LogstashTraceLevel),
		ublogger.SetTLS(conf.Stash.TLS != nil),
		ublogger.SetTLSConfig(loggerTLSConfig),
	)
	if err != nil {
		if loggerLoader != nil {
			loggerLoader.Close()
		}
		return nil, nil, errors.Wrap(err, "cannot create logger")
	}

	l2 := _logger.With().Timestamp().Str("host", hostname).Logger()
	var logger zLogger.ZLogger = &l2

	closer := closerFunc(func() error {
		if _logstash != nil {
			_logstash.Close()
		}
		if _logfile != nil {
			_logfile.Close()
		}
		if loggerLoader != nil {
			return loggerLoader.Close()
		}
		return nil
	})
	return logger, closer, nil
}
