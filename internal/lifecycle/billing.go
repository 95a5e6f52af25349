package lifecycle

import "github.com/ativasaude/guia-api/internal/model"

// BillableTotalCents sums the value of every non-denied line in the
// snapshot. A procedure whose authorization was denied contributes zero,
// and so do its materials; a denied material contributes zero while its
// owning procedure still bills.
func BillableTotalCents(s GuideSnapshot) int64 {
	deniedProcedures := make(map[string]bool, len(s.Procedures))
	var total int64

	for _, p := range s.Procedures {
		auth, ok := s.ProcedureAuths[p.ID.String()]
		if ok && auth.Status == model.AuthorizationStatusDenied {
			deniedProcedures[p.ID.String()] = true
			continue
		}
		total += p.TotalValueCents()
	}

	for _, m := range s.Materials {
		if m.Denied() || deniedProcedures[m.ProcedureID.String()] {
			continue
		}
		total += m.TotalValueCents()
	}

	return total
}
