package payments

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// MethodID identifies one of the supported checkout methods. The set is closed:
// Orchestrator.Pay switches over every value.
type MethodID string

const (
	MethodRazorpay   MethodID = "razorpay"
	MethodUPI        MethodID = "upi"
	MethodPhonePe    MethodID = "phonepe"
	MethodGooglePay  MethodID = "googlepay"
	MethodPaytm      MethodID = "paytm"
	MethodNetBanking MethodID = "netbanking"
	MethodCOD        MethodID = "cod"
	MethodEMI        MethodID = "emi"
)

var allMethods = []MethodID{
	MethodRazorpay, MethodUPI, MethodPhonePe, MethodGooglePay,
	MethodPaytm, MethodNetBanking, MethodCOD, MethodEMI,
}

// Methods lists every method id in catalog order.
func Methods() []MethodID {
	return slices.Clone(allMethods)
}

// ParseMethod resolves a browser-supplied id (case-insensitive).
func ParseMethod(raw string) (MethodID, error) {
	id := MethodID(strings.ToLower(strings.TrimSpace(raw)))
	if !slices.Contains(allMethods, id) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMethod, raw)
	}
	return id, nil
}

func (m MethodID) String() string { return string(m) }

// Descriptor is one entry of the static payment method catalog.
type Descriptor struct {
	ID          MethodID `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Icon        string   `yaml:"icon" json:"icon"`
	Popular     bool     `yaml:"popular" json:"popular"`
}

// Bank is a net banking option; Code is the Razorpay bank code.
type Bank struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name"`
}

//go:embed catalog.yaml
var catalogYAML []byte

type catalogFile struct {
	Methods    []Descriptor `yaml:"methods"`
	Banks      []Bank       `yaml:"banks"`
	EMITenures []int        `yaml:"emi_tenures"`
}

var loadCatalog = sync.OnceValue(func() catalogFile {
	var file catalogFile
	if err := yaml.Unmarshal(catalogYAML, &file); err != nil {
		panic(fmt.Sprintf("payments: embedded catalog: %v", err))
	}
	for _, d := range file.Methods {
		if !slices.Contains(allMethods, d.ID) {
			panic(fmt.Sprintf("payments: embedded catalog lists unknown method %q", d.ID))
		}
	}
	return file
})

// Catalog returns the payment methods offered at checkout.
func Catalog() []Descriptor {
	return slices.Clone(loadCatalog().Methods)
}

// Describe returns the catalog entry for id.
func Describe(id MethodID) (Descriptor, bool) {
	for _, d := range loadCatalog().Methods {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Banks returns the net banking bank list.
func Banks() []Bank {
	return slices.Clone(loadCatalog().Banks)
}

// EMITenures returns the supported installment counts in months.
func EMITenures() []int {
	return slices.Clone(loadCatalog().EMITenures)
}

func knownBank(code string) bool {
	for _, b := range loadCatalog().Banks {
		if b.Code == code {
			return true
		}
	}
	return false
}

func knownTenure(months int) bool {
	return slices.Contains(loadCatalog().EMITenures, months)
}
