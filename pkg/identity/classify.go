package identity

import (
	"fmt"
	"strings"
)

// classifyRule maps a predicate over the collected signals to a label.
// Rules are evaluated in order; the first match wins.
type classifyRule struct {
	label string
	match func(Signals) bool
}

func uaContains(substr string) func(Signals) bool {
	return func(sig Signals) bool {
		return strings.Contains(strings.ToLower(sig.UserAgent), strings.ToLower(substr))
	}
}

func uaContainsAll(substrs ...string) func(Signals) bool {
	return func(sig Signals) bool {
		for _, s := range substrs {
			if !strings.Contains(strings.ToLower(sig.UserAgent), strings.ToLower(s)) {
				return false
			}
		}
		return true
	}
}

func platformIs(names ...string) func(Signals) bool {
	return func(sig Signals) bool {
		for _, name := range names {
			if sig.Platform == name {
				return true
			}
		}
		return false
	}
}

var deviceTypeRules = []classifyRule{
	{DeviceTypeMobile, uaContains("iPhone")},
	{DeviceTypeMobile, uaContainsAll("Android", "Mobile")},
	{DeviceTypeMobile, uaContains("Windows Phone")},
	{DeviceTypeTablet, uaContains("iPad")},
	{DeviceTypeTablet, uaContains("Android")},
	{DeviceTypeDesktop, uaContains("Macintosh")},
	{DeviceTypeDesktop, uaContains("Windows")},
	{DeviceTypeDesktop, uaContains("CrOS")},
	{DeviceTypeDesktop, uaContains("X11")},
	{DeviceTypeDesktop, platformIs("darwin", "windows", "linux")},
}

var deviceNameRules = []classifyRule{
	{"iPhone", uaContains("iPhone")},
	{"iPad", uaContains("iPad")},
	{"Google Pixel", uaContains("Pixel")},
	{"Samsung Phone", uaContains("SM-")},
	{"Samsung Phone", uaContains("Samsung")},
	{"Android Phone", uaContainsAll("Android", "Mobile")},
	{"Android Tablet", uaContains("Android")},
	{"Mac", uaContains("Macintosh")},
	{"Mac", platformIs("darwin")},
	{"Windows PC", uaContains("Windows")},
	{"Windows PC", platformIs("windows")},
	{"Chromebook", uaContains("CrOS")},
	{"Linux", uaContains("Linux")},
	{"Linux", platformIs("linux")},
	{"Chrome Browser", uaContains("Chrome")},
	{"Firefox Browser", uaContains("Firefox")},
	{"Safari Browser", uaContains("Safari")},
	{"Edge Browser", uaContains("Edg")},
}

// ClassifyDeviceType infers the device category from the signals.
// Falls back to the web type when no rule matches.
func ClassifyDeviceType(sig Signals) string {
	return evalRules(deviceTypeRules, sig, DeviceTypeWeb)
}

// ClassifyDeviceName infers a human-readable device name from the signals.
func ClassifyDeviceName(sig Signals) string {
	return evalRules(deviceNameRules, sig, "Unknown Device")
}

func evalRules(rules []classifyRule, sig Signals, fallback string) string {
	for _, rule := range rules {
		if rule.match(sig) {
			return rule.label
		}
	}
	return fallback
}

// classifyModel derives a coarse model string. There is no reliable model
// signal outside of mobile user agents, so this stays close to the name.
func classifyModel(sig Signals) string {
	name := ClassifyDeviceName(sig)
	if sig.Platform != "" && !strings.Contains(strings.ToLower(name), sig.Platform) {
		return fmt.Sprintf("%s (%s)", name, sig.Platform)
	}
	return name
}

var osVersionMarkers = []struct {
	marker string
	label  string
}{
	{"iPhone OS", "iOS"},
	{"CPU OS", "iPadOS"},
	{"Android", "Android"},
	{"Windows NT 10", "Windows 10+"},
	{"Windows", "Windows"},
	{"Mac OS X", "macOS"},
	{"CrOS", "ChromeOS"},
	{"Linux", "Linux"},
}

func classifyOSVersion(sig Signals) string {
	ua := sig.UserAgent
	for _, m := range osVersionMarkers {
		if strings.Contains(ua, m.marker) {
			return m.label
		}
	}
	if sig.Platform != "" {
		return sig.Platform
	}
	return "unknown"
}
