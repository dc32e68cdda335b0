package tray

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/getlantern/systray"

	"github.com/NowakAdmin/MonerisAgent/internal/autostart"
	"github.com/NowakAdmin/MonerisAgent/internal/config"
	"github.com/NowakAdmin/MonerisAgent/internal/service"
	"github.com/NowakAdmin/MonerisAgent/internal/terminal"
	"github.com/NowakAdmin/MonerisAgent/internal/update"
	"github.com/NowakAdmin/MonerisAgent/internal/version"
)

type App struct {
	cfg     *config.Config
	service *service.Service
	logger  *log.Logger
}

func New(cfg *config.Config, svc *service.Service, logger *log.Logger) *App {
	return &App{
		cfg:     cfg,
		service: svc,
		logger:  logger,
	}
}

func (a *App) Run() {
	systray.Run(a.onReady, a.onExit)
}

func (a *App) onReady() {
	systray.SetIcon(generateIcon(16))
	systray.SetTitle("Moneris Agent")
	systray.SetTooltip("Moneris Agent - DX8000 terminal bridge")

	bridgeStatus := systray.AddMenuItem("Bridge: stopped", "Local API and backend link")
	bridgeStatus.Disable()
	terminalStatus := systray.AddMenuItem(terminalTitle(terminal.State{}), "Terminal session")
	terminalStatus.Disable()

	start := systray.AddMenuItem("Start", "Start accepting commands")
	stop := systray.AddMenuItem("Stop", "Stop accepting commands")
	stop.Disable()

	autostartItem := systray.AddMenuItemCheckbox("Start with Windows", "Run at logon", false)
	if enabled, err := autostart.IsEnabled(autostart.AppName); err == nil && enabled {
		autostartItem.Check()
	}

	updateItem := systray.AddMenuItem("Check for updates", "Look for a newer agent version")
	versionItem := systray.AddMenuItem("Version: "+version.Version, "Agent version")
	versionItem.Disable()

	systray.AddSeparator()
	quit := systray.AddMenuItem("Quit", "Quit Moneris Agent")

	ctx := context.Background()

	setRunning := func(running bool) {
		if running {
			bridgeStatus.SetTitle("Bridge: listening on " + a.service.Addr())
			start.Disable()
			stop.Enable()
			return
		}
		bridgeStatus.SetTitle("Bridge: stopped")
		start.Enable()
		stop.Disable()
	}

	if err := a.service.Start(ctx); err != nil {
		a.logger.Printf("Service start error: %v", err)
	}
	setRunning(a.service.IsRunning())

	checkEvery := time.Duration(a.cfg.Update.CheckIntervalHours) * time.Hour
	if checkEvery <= 0 {
		checkEvery = 6 * time.Hour
	}
	updateTicker := time.NewTicker(checkEvery)
	statusTicker := time.NewTicker(2 * time.Second)

	go func() {
		defer updateTicker.Stop()
		defer statusTicker.Stop()

		for {
			select {
			case <-statusTicker.C:
				terminalStatus.SetTitle(terminalTitle(a.service.Dispatcher().Status()))

			case <-start.ClickedCh:
				if startErr := a.service.Start(ctx); startErr != nil {
					a.logger.Printf("Service start error: %v", startErr)
					continue
				}
				setRunning(true)

			case <-stop.ClickedCh:
				a.service.Stop()
				setRunning(false)

			case <-autostartItem.ClickedCh:
				a.toggleAutostart(autostartItem)

			case <-updateItem.ClickedCh:
				if result, ok := a.checkUpdate(10 * time.Second); ok && result.HasUpdate {
					_ = openURL(result.URL)
				}

			case <-updateTicker.C:
				a.checkUpdate(8 * time.Second)

			case <-quit.ClickedCh:
				a.service.Close()
				systray.Quit()
				return
			}
		}
	}()
}

func (a *App) onExit() {
	a.service.Close()
}

func (a *App) toggleAutostart(item *systray.MenuItem) {
	if item.Checked() {
		if err := autostart.Disable(autostart.AppName); err != nil {
			a.logger.Printf("Autostart disable error: %v", err)
			return
		}
		item.Uncheck()
		return
	}

	executablePath, err := os.Executable()
	if err != nil {
		a.logger.Printf("Executable path error: %v", err)
		return
	}

	if err = autostart.Enable(autostart.AppName, executablePath); err != nil {
		a.logger.Printf("Autostart enable error: %v", err)
		return
	}
	item.Check()
}

func (a *App) checkUpdate(timeout time.Duration) (update.Result, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	result, err := update.CheckGitHubRelease(ctx, a.cfg.Update.GitHubRepo)
	if err != nil {
		a.logger.Printf("Update check error: %v", err)
		return update.Result{}, false
	}

	if result.HasUpdate {
		a.logger.Printf("Update %s available: %s", result.Version, result.URL)
	} else {
		a.logger.Printf("No newer version")
	}

	return result, true
}

func terminalTitle(state terminal.State) string {
	switch {
	case state.Connected:
		return "Terminal: connected"
	case state.Initialized:
		return "Terminal: initialized"
	default:
		return "Terminal: not initialized"
	}
}

func openURL(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	return cmd.Start()
}

// generateIcon draws a card-terminal glyph: a dark frame with a green screen.
func generateIcon(size int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))

	frame := color.RGBA{40, 40, 48, 255}
	screen := color.RGBA{0, 160, 90, 255}
	margin := size / 8

	for x := margin; x < size-margin; x++ {
		for y := 0; y < size; y++ {
			img.SetRGBA(x, y, frame)
		}
	}

	for x := margin + 2; x < size-margin-2; x++ {
		for y := 2; y < size/2; y++ {
			img.SetRGBA(x, y, screen)
		}
	}

	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}
