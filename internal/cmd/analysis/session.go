package analysis

import (
	"fmt"

	"github.com/Iron-Ham/plancast/internal/config"
	"github.com/Iron-Ham/plancast/internal/engine"
	"github.com/Iron-Ham/plancast/internal/errors"
	"github.com/Iron-Ham/plancast/internal/logging"
	"github.com/Iron-Ham/plancast/internal/projectfile"
	"github.com/spf13/cobra"
)

// reportedError signals that a command failed after it already printed
// the details. Used to set exit code 1 without a duplicate error message.
type reportedError struct {
	msg string
}

func (e *reportedError) Error() string {
	return e.msg
}

// IsReported reports whether err was already shown to the user.
func IsReported(err error) bool {
	var r *reportedError
	return errors.As(err, &r)
}

// session is one loaded project plus everything a command needs to report
// on it.
type session struct {
	path   string
	cfg    *config.Config
	logger *logging.Logger
	file   *projectfile.File
	engine *engine.Engine
	out    *renderer
}

// loadConfig reads the configuration and opens the log it asks for.
func loadConfig() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if !cfg.Logging.Enabled {
		return cfg, logging.NopLogger(), nil
	}
	logger, err := logging.NewLogger(cfg.Logging.ResolveDir(), cfg.Logging.Level)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

// openProject loads, validates and builds the project at path. Validation
// problems are printed; errors abort with a reportedError.
func openProject(cmd *cobra.Command, path string) (*session, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	s := &session{
		path:   path,
		cfg:    cfg,
		logger: logger.WithComponent("cli"),
		out:    newRenderer(cmd.OutOrStdout(), cfg.Output),
	}

	if err := s.load(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// load (re)reads the project file and rebuilds the engine.
func (s *session) load() error {
	f, err := projectfile.Load(s.path)
	if err != nil {
		return err
	}

	msgs := projectfile.Validate(f)
	if projectfile.HasErrors(msgs) {
		s.out.messages(msgs)
		return &reportedError{msg: fmt.Sprintf("%s has validation errors", s.path)}
	}

	e, err := projectfile.Build(f, s.cfg, engine.Options{Logger: s.logger})
	if e == nil {
		return err
	}
	if err != nil {
		s.out.warn(err.Error())
	}
	s.file, s.engine = f, e
	s.logger.Debug("project opened", "path", s.path, "tasks", e.Store().Len())
	return nil
}

// Close releases the session's log file.
func (s *session) Close() {
	_ = s.logger.Close()
}
