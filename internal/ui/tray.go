// Package ui is the optional system tray surface. It mirrors export state
// and offers cancel/quit; all real control flows through the HTTP API.
package ui

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/framecut/framecut-agent/internal/export"
)

type Tray struct {
	orchestrator *export.Orchestrator
	logger       *slog.Logger

	statusItem   *systray.MenuItem
	progressItem *systray.MenuItem
	cancelItem   *systray.MenuItem

	mu sync.Mutex

	onQuit func()
}

type TrayConfig struct {
	Orchestrator *export.Orchestrator
	Logger       *slog.Logger
	OnQuit       func()
}

func NewTray(cfg TrayConfig) *Tray {
	return &Tray{
		orchestrator: cfg.Orchestrator,
		logger:       cfg.Logger,
		onQuit:       cfg.OnQuit,
	}
}

func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Framecut")
	systray.SetTooltip("Framecut Agent")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Current agent status")
	t.statusItem.Disable()

	t.progressItem = systray.AddMenuItem("No export running", "Export progress")
	t.progressItem.Disable()

	systray.AddSeparator()

	t.cancelItem = systray.AddMenuItem("Cancel Export", "Cancel the running export")
	t.cancelItem.Disable()

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Framecut Agent")

	go func() {
		for {
			select {
			case <-t.cancelItem.ClickedCh:
				t.handleCancel()
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) handleCancel() {
	if t.orchestrator == nil {
		return
	}
	job := t.orchestrator.Active()
	if job == nil {
		return
	}
	if err := t.orchestrator.Cancel(job.ID); err != nil {
		t.logger.Error("failed to cancel export from tray", "error", err, "job_id", job.ID)
	}
}

// UpdateExport reflects the running job's state in the menu. Terminal states
// reset the menu to idle.
func (t *Tray) UpdateExport(state export.State, ratio float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.statusItem == nil {
		return
	}

	if state.Terminal() || state == export.StateIdle {
		t.statusItem.SetTitle("Status: Idle")
		t.progressItem.SetTitle("No export running")
		t.cancelItem.Disable()
		return
	}

	t.statusItem.SetTitle("Status: Exporting")
	t.progressItem.SetTitle(fmt.Sprintf("Export: %s (%.0f%%)", state, ratio*100))
	t.cancelItem.Enable()
}

func (t *Tray) Quit() {
	systray.Quit()
}
