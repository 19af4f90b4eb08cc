package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jonwraymond/dbops/config"
	"github.com/jonwraymond/dbops/observe"
)

// session is the per-invocation state shared by subcommands. The backend is
// opened on first use so help and completion never touch the database.
type session struct {
	v      *viper.Viper
	cfg    config.Config
	stderr io.Writer

	obs     observe.Observer
	backend backend
}

func (s *session) open(ctx context.Context) (backend, error) {
	if s.backend != nil {
		return s.backend, nil
	}

	ocfg := s.cfg.Observe
	ocfg.Logging.Writer = s.stderr
	obs, err := observe.NewObserver(ctx, ocfg)
	if err != nil {
		return nil, err
	}
	mw, err := observe.MiddlewareFromObserver(obs)
	if err != nil {
		return nil, errors.Join(err, obs.Shutdown(ctx))
	}
	s.obs = obs

	var b backend
	switch s.cfg.Driver {
	case config.DriverPostgres:
		b, err = openPostgres(ctx, s.cfg, mw)
	default:
		b, err = openSQLite(ctx, s.cfg, mw)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", s.cfg.Driver, err)
	}
	s.backend = b
	return b, nil
}

func (s *session) close(ctx context.Context) error {
	var errs []error
	if s.backend != nil {
		errs = append(errs, s.backend.Close())
		s.backend = nil
	}
	if s.obs != nil {
		errs = append(errs, s.obs.Shutdown(context.WithoutCancel(ctx)))
		s.obs = nil
	}
	return errors.Join(errs...)
}

// closeAfterRun makes every runnable command in the tree close the session
// when it returns, on success or failure.
func (s *session) closeAfterRun(c *cobra.Command) {
	for _, sub := range c.Commands() {
		s.closeAfterRun(sub)
	}
	if c.RunE == nil {
		return
	}
	run := c.RunE
	c.RunE = func(cmd *cobra.Command, args []string) error {
		err := run(cmd, args)
		if cerr := s.close(cmd.Context()); cerr != nil {
			return errors.Join(err, cerr)
		}
		return err
	}
}
