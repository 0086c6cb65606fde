package platform

import (
	"errors"
	"strings"
)

var ErrUnknownPlatform = errors.New("unknown delivery platform")

type Platform struct {
	Name string
}

func (p Platform) Code() string {
	return p.Name
}

func (p Platform) Label() string {
	switch p {
	case Platforms.Yemeksepeti:
		return "Yemeksepeti"
	case Platforms.Getir:
		return "Getir Yemek"
	case Platforms.TrendyolGo:
		return "Trendyol Go"
	case Platforms.MigrosYemek:
		return "Migros Yemek"
	default:
		return p.Name
	}
}

// Profile holds the per-platform integration settings.
type Profile struct {
	OrdersPath          string
	AcceptPath          string
	RejectPath          string
	StatusPath          string
	DefaultPrepMinutes  int
	DefaultRejectReason string
	// ReportsReady is false for platforms whose couriers are not notified
	// about the ready transition; the status is then kept local.
	ReportsReady bool
}

type Enum struct {
	Yemeksepeti Platform
	Getir       Platform
	TrendyolGo  Platform
	MigrosYemek Platform
}

var Platforms = Enum{
	Yemeksepeti: Platform{Name: "yemeksepeti"},
	Getir:       Platform{Name: "getir"},
	TrendyolGo:  Platform{Name: "trendyolgo"},
	MigrosYemek: Platform{Name: "migrosyemek"},
}

var All = []Platform{
	Platforms.Yemeksepeti,
	Platforms.Getir,
	Platforms.TrendyolGo,
	Platforms.MigrosYemek,
}

// ByName returns the platform for a given name, or nil if not found
func ByName(name string) *Platform {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range All {
		if p.Name == name {
			return &p
		}
	}
	return nil
}

// Profile resolves the integration settings. Every member of All must be
// handled here; platform_test.go enforces it.
func (p Platform) Profile() (Profile, error) {
	switch p {
	case Platforms.Yemeksepeti:
		return Profile{
			OrdersPath:          "/orders?status=live",
			AcceptPath:          "/orders/%s/accept",
			RejectPath:          "/orders/%s/reject",
			StatusPath:          "/orders/%s/status",
			DefaultPrepMinutes:  25,
			DefaultRejectReason: "restaurant_too_busy",
			ReportsReady:        true,
		}, nil
	case Platforms.Getir:
		return Profile{
			OrdersPath:          "/food-orders/active",
			AcceptPath:          "/food-orders/%s/verify",
			RejectPath:          "/food-orders/%s/cancel",
			StatusPath:          "/food-orders/%s/prepare",
			DefaultPrepMinutes:  20,
			DefaultRejectReason: "closed",
			ReportsReady:        true,
		}, nil
	case Platforms.TrendyolGo:
		return Profile{
			OrdersPath:          "/packages?status=Created",
			AcceptPath:          "/packages/%s/picked",
			RejectPath:          "/packages/%s/unsupplied",
			StatusPath:          "/packages/%s/invoiced",
			DefaultPrepMinutes:  30,
			DefaultRejectReason: "out_of_stock",
			ReportsReady:        false,
		}, nil
	case Platforms.MigrosYemek:
		return Profile{
			OrdersPath:          "/orders/new",
			AcceptPath:          "/orders/%s/approve",
			RejectPath:          "/orders/%s/decline",
			StatusPath:          "/orders/%s/state",
			DefaultPrepMinutes:  25,
			DefaultRejectReason: "restaurant_unavailable",
			ReportsReady:        true,
		}, nil
	default:
		return Profile{}, ErrUnknownPlatform
	}
}
