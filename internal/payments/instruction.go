package payments

import (
	"fmt"
	"strings"
)

// Instruction is the per-method part of a checkout intent. The set of implementations
// is sealed; Orchestrator.Pay switches over all of them.
type Instruction interface {
	Method() MethodID
	validate() error
	sealed()
}

// RazorpayInstruction opens Razorpay's hosted checkout with every method enabled.
type RazorpayInstruction struct{}

// UPIInstruction pays by UPI. With Manual set the customer typed a VPA, which is then required.
type UPIInstruction struct {
	Manual bool
	VPA    string
}

type PhonePeInstruction struct{}

type GooglePayInstruction struct{}

type PaytmInstruction struct{}

// NetBankingInstruction requires one of the catalog bank codes.
type NetBankingInstruction struct {
	BankCode string
}

type CODInstruction struct{}

// EMIInstruction requires one of the catalog tenures.
type EMIInstruction struct {
	Tenure int
}

func (RazorpayInstruction) Method() MethodID   { return MethodRazorpay }
func (UPIInstruction) Method() MethodID        { return MethodUPI }
func (PhonePeInstruction) Method() MethodID    { return MethodPhonePe }
func (GooglePayInstruction) Method() MethodID  { return MethodGooglePay }
func (PaytmInstruction) Method() MethodID      { return MethodPaytm }
func (NetBankingInstruction) Method() MethodID { return MethodNetBanking }
func (CODInstruction) Method() MethodID        { return MethodCOD }
func (EMIInstruction) Method() MethodID        { return MethodEMI }

func (RazorpayInstruction) sealed()   {}
func (UPIInstruction) sealed()        {}
func (PhonePeInstruction) sealed()    {}
func (GooglePayInstruction) sealed()  {}
func (PaytmInstruction) sealed()      {}
func (NetBankingInstruction) sealed() {}
func (CODInstruction) sealed()        {}
func (EMIInstruction) sealed()        {}

func (RazorpayInstruction) validate() error  { return nil }
func (PhonePeInstruction) validate() error   { return nil }
func (GooglePayInstruction) validate() error { return nil }
func (PaytmInstruction) validate() error     { return nil }
func (CODInstruction) validate() error       { return nil }

func (i UPIInstruction) validate() error {
	if !i.Manual {
		return nil
	}
	vpa := strings.TrimSpace(i.VPA)
	if vpa == "" {
		return fieldError("upiId", "enter your UPI ID")
	}
	if !validVPA(vpa) {
		return fieldError("upiId", "UPI ID must look like name@bank")
	}
	return nil
}

func (i NetBankingInstruction) validate() error {
	code := strings.ToUpper(strings.TrimSpace(i.BankCode))
	if code == "" {
		return fieldError("bank", "select a bank to continue")
	}
	if !knownBank(code) {
		return fieldError("bank", fmt.Sprintf("bank %q is not supported", i.BankCode))
	}
	return nil
}

func (i EMIInstruction) validate() error {
	if !knownTenure(i.Tenure) {
		return fieldError("emiTenure", fmt.Sprintf("EMI tenure must be one of %v months", EMITenures()))
	}
	return nil
}

// Params is the raw per-method input posted by the browser.
type Params struct {
	UPIManual bool   `json:"upiManual,omitempty"`
	UPIID     string `json:"upiId,omitempty"`
	BankCode  string `json:"bank,omitempty"`
	EMITenure int    `json:"emiTenure,omitempty"`
}

// InstructionFor builds the instruction variant for method. The result still has to
// pass validation inside Pay.
func InstructionFor(method MethodID, p Params) (Instruction, error) {
	switch method {
	case MethodRazorpay:
		return RazorpayInstruction{}, nil
	case MethodUPI:
		return UPIInstruction{Manual: p.UPIManual, VPA: strings.TrimSpace(p.UPIID)}, nil
	case MethodPhonePe:
		return PhonePeInstruction{}, nil
	case MethodGooglePay:
		return GooglePayInstruction{}, nil
	case MethodPaytm:
		return PaytmInstruction{}, nil
	case MethodNetBanking:
		return NetBankingInstruction{BankCode: strings.ToUpper(strings.TrimSpace(p.BankCode))}, nil
	case MethodCOD:
		return CODInstruction{}, nil
	case MethodEMI:
		return EMIInstruction{Tenure: p.EMITenure}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMethod, method)
	}
}

func fieldError(field, message string) *ValidationError {
	verr := newValidationError()
	verr.add(field, message)
	return verr
}

func validVPA(vpa string) bool {
	handle, provider, ok := strings.Cut(vpa, "@")
	if !ok || handle == "" || provider == "" || strings.ContainsAny(vpa, " /?&=#") {
		return false
	}
	return !strings.Contains(provider, "@")
}
