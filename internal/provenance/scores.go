package provenance

import (
	"github.com/herbtrace/herbtrace-backend/internal/domain"
)

// timelinessWindow is the mean inter-stage delay that maps to the worst
// timeliness score. A chain whose stages average thirty days apart has gone
// stale for traceability purposes.
const timelinessWindowHours = 30 * 24

// Completeness is the share of required resource kinds present.
func (a *Aggregator) Completeness() float64 {
	if len(a.resources) == 0 {
		return 0
	}
	present := map[domain.ResourceKind]bool{}
	for _, r := range a.resources {
		present[r.Kind()] = true
	}
	hit := 0
	for _, k := range domain.RequiredKinds {
		if present[k] {
			hit++
		}
	}
	return float64(hit) / float64(len(domain.RequiredKinds)) * 100
}

// Accuracy is the share of resources passing their own validation.
func (a *Aggregator) Accuracy() float64 {
	if len(a.resources) == 0 {
		return 0
	}
	valid := 0
	for _, r := range a.resources {
		if r.Validate().Valid {
			valid++
		}
	}
	return float64(valid) / float64(len(a.resources)) * 100
}

// Timeliness maps the mean delay between consecutive timeline events onto
// [0,100], where 0 means no delay. Zero or one event scores 0: there is no
// gap to penalize.
func (a *Aggregator) Timeliness() float64 {
	if len(a.events) < 2 {
		return 0
	}
	var totalHours float64
	for i := 1; i < len(a.events); i++ {
		totalHours += a.events[i].PerformedAt.Sub(a.events[i-1].PerformedAt).Hours()
	}
	meanHours := totalHours / float64(len(a.events)-1)
	score := meanHours / timelinessWindowHours * 100
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Transparency is the share of non-empty documentation sub-fields (photos,
// certificates, reports, notes) across all resources.
func (a *Aggregator) Transparency() float64 {
	if len(a.resources) == 0 {
		return 0
	}
	filled, examined := 0, 0
	for _, r := range a.resources {
		f, e := r.DocumentationRefs().FilledFields()
		filled += f
		examined += e
	}
	if examined == 0 {
		return 0
	}
	return float64(filled) / float64(examined) * 100
}

// Verifiability scores how well each record can be checked against an
// independent anchor: chain links resolving to a prior resource (the
// collection head anchors on its GPS fix instead), plus lab certificates.
func (a *Aggregator) Verifiability() float64 {
	if len(a.resources) == 0 {
		return 0
	}
	earned, possible := 0, 0
	for _, r := range a.resources {
		possible++
		switch res := r.(type) {
		case *domain.CollectionEvent:
			if !res.Location.IsZero() {
				earned++
			}
		case *domain.QualityTest:
			if res.PriorRef() != nil {
				earned++
			}
			possible++
			if res.CertificateNumber != "" {
				earned++
			}
		default:
			if r.PriorRef() != nil {
				earned++
			}
		}
	}
	return float64(earned) / float64(possible) * 100
}

// ScoreBreakdown computes all five sub-scores.
func (a *Aggregator) ScoreBreakdown() Scores {
	return Scores{
		Completeness:  a.Completeness(),
		Accuracy:      a.Accuracy(),
		Timeliness:    a.Timeliness(),
		Transparency:  a.Transparency(),
		Verifiability: a.Verifiability(),
	}
}

// Score is the weighted composite:
//
//	completeness*0.30 + accuracy*0.25 + (100-timeliness)*0.20 +
//	transparency*0.15 + verifiability*0.10
//
// computed over integer-weighted hundredths so perfect inputs yield exactly
// 100.
func (a *Aggregator) Score() float64 {
	s := a.ScoreBreakdown()
	return (s.Completeness*30 + s.Accuracy*25 + (100-s.Timeliness)*20 + s.Transparency*15 + s.Verifiability*10) / 100
}
