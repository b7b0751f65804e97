package edf2cfs

import (
	"strings"
	"time"

	"github.com/amiyapatanaik/edf2cfs/internal/edfio"
)

// Role identifies one of the four logical channels of a conversion.
type Role int

const (
	RoleC3 Role = iota // central EEG, C3:A2
	RoleC4             // central EEG, C4:A1
	RoleEL             // left EOG, EL:A2
	RoleER             // right EOG, ER:A1

	roleCount = 4
)

func (r Role) String() string {
	switch r {
	case RoleC3:
		return "C3"
	case RoleC4:
		return "C4"
	case RoleEL:
		return "EL"
	case RoleER:
		return "ER"
	}
	return "unknown"
}

// ChannelSelection binds the four logical roles to EDF label strings.
// Labels are matched case-insensitively against the full signal label.
type ChannelSelection struct {
	C3 string
	C4 string
	EL string
	ER string
}

// Label returns the label bound to a role.
func (s ChannelSelection) Label(r Role) string {
	switch r {
	case RoleC3:
		return s.C3
	case RoleC4:
		return s.C4
	case RoleEL:
		return s.EL
	case RoleER:
		return s.ER
	}
	return ""
}

// Complete reports whether all four roles carry a label.
func (s ChannelSelection) Complete() bool {
	return s.C3 != "" && s.C4 != "" && s.EL != "" && s.ER != ""
}

// boundChannel is a role resolved against a concrete EDF signal.
type boundChannel struct {
	index   int
	label   string
	unit    string
	rate    float64 // samples-per-record / record duration
	scale   float64 // physical unit to microvolts
	samples int     // sample count in file
}

// nominalRate returns the integer sample rate used for rate-equality
// checks and the 100 Hz bypass decision.
func (c boundChannel) nominalRate() int {
	return int(c.rate)
}

// unitScale returns the microvolt multiplier for an EDF physical
// dimension. Matching is prefix-based: two characters for nV/uV/mV,
// one character for the V fallback.
func unitScale(unit string) (float64, bool) {
	switch {
	case strings.HasPrefix(unit, "nV"):
		return 0.001, true
	case strings.HasPrefix(unit, "uV"):
		return 1.0, true
	case strings.HasPrefix(unit, "mV"):
		return 1000.0, true
	case strings.HasPrefix(unit, "V"):
		return 1_000_000.0, true
	}
	return 0, false
}

// resolveChannels matches the four requested labels against the EDF
// signal list and derives per-channel rate, unit scale and sample
// count. First match by signal index wins. Fails with LabelNotFound
// for an absent label, UnsupportedUnit for an unrecognised physical
// dimension, and RateMismatch when C3 and C4 disagree on the nominal
// integer rate.
func resolveChannels(hdr *edfio.Header, sel ChannelSelection) ([roleCount]boundChannel, error) {
	var bound [roleCount]boundChannel

	duration := hdr.DataRecordDuration
	if duration <= 0 {
		duration = time.Second
	}

	for role := RoleC3; role <= RoleER; role++ {
		want := strings.ToLower(sel.Label(role))

		found := false
		for i, sig := range hdr.Signals {
			if strings.ToLower(sig.Label) != want {
				continue
			}

			scale, ok := unitScale(sig.PhysicalDimension)
			if !ok {
				return bound, &UnsupportedUnitError{Role: role, Unit: sig.PhysicalDimension}
			}

			bound[role] = boundChannel{
				index:   i,
				label:   sig.Label,
				unit:    sig.PhysicalDimension,
				rate:    float64(sig.SamplesPerRecord) / duration.Seconds(),
				scale:   scale,
				samples: sig.SamplesPerRecord * hdr.DataRecords,
			}
			found = true
			break
		}
		if !found {
			return bound, &LabelNotFoundError{Role: role}
		}
	}

	if bound[RoleC3].nominalRate() != bound[RoleC4].nominalRate() {
		return bound, &RateMismatchError{
			C3Rate: bound[RoleC3].nominalRate(),
			C4Rate: bound[RoleC4].nominalRate(),
		}
	}
	return bound, nil
}
