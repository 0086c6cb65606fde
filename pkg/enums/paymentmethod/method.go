package paymentmethod

import (
	"errors"
	"strings"
)

var ErrUnknownMethod = errors.New("unknown payment method")

type Method struct {
	Name string
}

func (m Method) Code() string {
	return m.Name
}

func (m Method) Label() string {
	parts := strings.Split(m.Name, "_")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

type Enum struct {
	Cash        Method
	Card        Method
	MealVoucher Method
	Online      Method
}

var Methods = Enum{
	Cash:        Method{Name: "cash"},
	Card:        Method{Name: "card"},
	MealVoucher: Method{Name: "meal_voucher"},
	Online:      Method{Name: "online"},
}

var All = []Method{
	Methods.Cash,
	Methods.Card,
	Methods.MealVoucher,
	Methods.Online,
}

// ByName returns the method for a given name, or nil if not found
func ByName(name string) *Method {
	for _, m := range All {
		if m.Name == name {
			return &m
		}
	}
	return nil
}

// Rules describe how the terminal treats a settled payment.
type Rules struct {
	AcceptsTip bool
	// Delegated methods are settled by an external device or platform.
	Delegated bool
}

func (m Method) Rules() (Rules, error) {
	switch m {
	case Methods.Cash:
		return Rules{AcceptsTip: true}, nil
	case Methods.Card:
		return Rules{AcceptsTip: true, Delegated: true}, nil
	case Methods.MealVoucher:
		return Rules{Delegated: true}, nil
	case Methods.Online:
		return Rules{Delegated: true}, nil
	default:
		return Rules{}, ErrUnknownMethod
	}
}
