package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"

	pkgconfig "github.com/wealthtrack/device-trust/pkg/config"
	"github.com/wealthtrack/device-trust/pkg/identity"
	"github.com/wealthtrack/device-trust/pkg/trustctl"
)

type Config struct {
	ClientConfig pkgconfig.ClientConfig
	SessionToken string `env:"SESSION_TOKEN"`
}

// exitGuard terminates the process when the backend reports the session is
// gone, standing in for the app's forced-logout flow.
type exitGuard struct{}

func (exitGuard) IsAuthenticated() bool { return true }

func (exitGuard) ForceLogout() {
	fmt.Fprintln(os.Stderr, "session expired, please log in again")
	os.Exit(1)
}

func main() {
	godotenv.Load()

	config := Config{}
	cleanenv.ReadEnv(&config)

	action := flag.String("action", "list", "one of: id, list, stats, logout, logout-others, logout-all, trust, untrust")
	deviceID := flag.String("device", "", "target device ID for logout/trust/untrust")
	flag.Parse()

	store, err := identity.DefaultStore()
	if err != nil {
		slog.Error("Failed to open identity store", "error", err)
		os.Exit(1)
	}

	info, err := store.GetOrCreate(identity.CollectSignals(config.ClientConfig.UserAgent, config.ClientConfig.AppVersion))
	if err != nil {
		slog.Error("Failed to derive device identity", "error", err)
		os.Exit(1)
	}

	if *action == "id" {
		fmt.Printf("device: %s (%s, %s)\nid: %s\n", info.DeviceName, info.DeviceType, info.OSVersion, info.DeviceID)
		return
	}

	client := trustctl.NewHTTPClient(config.ClientConfig.BaseURL, trustctl.StaticToken(config.SessionToken), nil)
	ctl := trustctl.NewController(client, exitGuard{})
	ctx := context.Background()

	if err := ctl.FetchDevices(ctx); err != nil {
		slog.Error("Failed to fetch devices", "error", err)
		os.Exit(1)
	}

	switch *action {
	case "list":
		printDevices(ctl)
	case "stats":
		stats := ctl.GetDeviceStats()
		fmt.Printf("total: %d  trusted: %d  active: %d  untrusted: %d\n",
			stats.Total, stats.Trusted, stats.Active, stats.Untrusted)
	case "logout":
		run(ctl.LogoutDevice(ctx, *deviceID))
	case "logout-others":
		run(ctl.LogoutAllDevices(ctx, false))
	case "logout-all":
		run(ctl.LogoutAllDevices(ctx, true))
	case "trust":
		run(ctl.TrustDevice(ctx, *deviceID))
	case "untrust":
		run(ctl.UntrustDevice(ctx, *deviceID))
	default:
		fmt.Fprintf(os.Stderr, "unknown action: %s\n", *action)
		os.Exit(2)
	}
}

func run(err error) {
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println("ok")
}

func printDevices(ctl *trustctl.Controller) {
	for _, d := range ctl.Devices() {
		marker := " "
		if d.IsCurrentDevice {
			marker = "*"
		}
		trust := "untrusted"
		if d.IsTrusted {
			trust = "trusted"
		}
		fmt.Printf("%s %-20s %-8s %-9s last seen %s\n",
			marker, d.DeviceName, d.DeviceType, trust, d.LastAccessAt.Format("2006-01-02 15:04"))
	}
	if ctl.CanLogoutOthers() {
		fmt.Println("\nthis device may log out other devices")
	}
}
