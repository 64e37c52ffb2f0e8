package monitor

import (
	"github.com/linkwatch/linkwatch/pkg/checker"
	"github.com/linkwatch/linkwatch/pkg/logger"
	"github.com/linkwatch/linkwatch/pkg/notifier"
	"github.com/linkwatch/linkwatch/pkg/sshexec"
	"github.com/linkwatch/linkwatch/pkg/state"
	"github.com/linkwatch/linkwatch/pkg/types"
)

// NewDefaultDependencies wires the production collaborators for a
// monitor rooted at projectRoot
func NewDefaultDependencies(projectRoot string, cfg *types.MonitorConfig, log logger.Logger) Dependencies {
	return Dependencies{
		Checker:  checker.New(cfg.CheckAttempts, cfg.CheckRetryDelay, log),
		Executor: sshexec.New(log),
		Notifier: notifier.New(notifier.Config{
			BotToken: cfg.Telegram.BotToken,
			ChatID:   cfg.Telegram.ChatID,
		}, log),
		States: state.NewManager(projectRoot, log),
	}
}
