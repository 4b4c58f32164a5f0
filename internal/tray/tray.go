// Package tray exposes the controller as a system tray menu.
package tray

import (
	"fmt"
	"time"

	"github.com/gen2brain/beeep"
	"github.com/getlantern/systray"

	"github.com/jiggo089/conference-ai-assistant/internal/control"
	"github.com/jiggo089/conference-ai-assistant/internal/observability"
)

const appName = "Conference Assistant"

// Notify shows a desktop notification; failures are only logged
func Notify(title, message string) {
	if err := beeep.Notify(appName+": "+title, message, ""); err != nil {
		logger := observability.WithComponent("tray")
		logger.Debug().Err(err).Msg("Desktop notification failed")
	}
}

// Run shows the tray menu and blocks until Quit is chosen.
// It must be called from the main goroutine.
func Run(ctl *control.Controller, presets []int, onExit func()) {
	systray.Run(func() { onReady(ctl, presets) }, onExit)
}

func onReady(ctl *control.Controller, presets []int) {
	logger := observability.WithComponent("tray")
	initIcons()
	systray.SetTitle("")
	systray.SetTooltip(appName)
	systray.SetIcon(icons[StateIdle])

	mListen := systray.AddMenuItem("Listen", "Start recording into the rolling buffer")
	for _, seconds := range presets {
		item := systray.AddMenuItem(fmt.Sprintf("Save last %d sec", seconds), "Stop and send the last seconds to the assistant")
		go func(seconds int) {
			for range item.ClickedCh {
				if _, err := ctl.Stop(seconds); err != nil {
					logger.Warn().Err(err).Int("seconds", seconds).Msg("Save from tray failed")
				}
			}
		}(seconds)
	}
	systray.AddSeparator()
	mReset := systray.AddMenuItem("Reset thread", "Start a new assistant conversation")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Stop the recorder")

	go func() {
		for {
			select {
			case <-mListen.ClickedCh:
				if err := ctl.Start(); err != nil {
					logger.Warn().Err(err).Msg("Start from tray failed")
				}
			case <-mReset.ClickedCh:
				ctl.Reset()
			case <-mQuit.ClickedCh:
				systray.Quit()
				return
			}
		}
	}()

	go watch(ctl, mListen)
}

// watch keeps the icon and the Listen item in step with the controller
func watch(ctl *control.Controller, mListen *systray.MenuItem) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	current := StateIdle
	for range ticker.C {
		st := ctl.Status()
		if st.Recorder.State == "recording" {
			mListen.Disable()
		} else {
			mListen.Enable()
		}

		next := stateFor(st)
		if next != current {
			systray.SetIcon(icons[next])
			systray.SetTooltip(fmt.Sprintf("%s (%s)", appName, st.Recorder.State))
			current = next
		}
	}
}

// Quit closes the tray menu, making Run return
func Quit() {
	systray.Quit()
}
