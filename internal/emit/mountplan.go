package emit

import (
	"github.com/helianthus/reflectgen/internal/model"
)

// MountDecision is the outcome of automount for one generated service.
type MountDecision struct {
	Service string   `json:"service"`
	Mounted bool     `json:"mounted"`
	Methods []string `json:"methods,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// Skip reasons reported by PlanMount.
const (
	ReasonNoTaggedMethod = "no method carries a required tag"
	ReasonNoInstance     = "no factory instance"
)

// PlanMount predicts what the generated RegisterReflectedServices does with
// the services generated for classes. With no required tags it follows the
// unfiltered overload. Services registered by hand at runtime are not known
// here.
func PlanMount(classes []model.ClassRecord, requiredTags []string, opts Options) []MountDecision {
	required := make(map[string]bool, len(requiredTags))
	for _, t := range requiredTags {
		required[t] = true
	}

	var out []MountDecision
	for _, c := range Aggregated(classes, opts) {
		if !opts.AutoRegisters(&c) {
			continue
		}
		d := MountDecision{Service: c.Name}
		if len(required) > 0 {
			for _, m := range UniqueMethods(&c) {
				for _, t := range m.BusinessTags() {
					if required[t] {
						d.Methods = append(d.Methods, m.Name)
						break
					}
				}
			}
			if len(d.Methods) == 0 {
				d.Reason = ReasonNoTaggedMethod
				out = append(out, d)
				continue
			}
		}
		if !c.HasFactory || !c.HeaderMode {
			d.Methods = nil
			d.Reason = ReasonNoInstance
			out = append(out, d)
			continue
		}
		d.Mounted = true
		out = append(out, d)
	}
	return out
}
