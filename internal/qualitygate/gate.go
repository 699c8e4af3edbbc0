// Package qualitygate classifies a product on the status ladder
// {Rejected, Skeleton, Partial, Baseline, Enriched, Complete} from its
// field map, ECP total, and per-type configuration (§4.4 Quality Gate).
//
// Gate is a pure function of its inputs: it depends on internal/ecp for
// the ECP total shape but reads no storage itself (§9 "Gate depends on ECP").
package qualitygate

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/shelfmark/productpipeline/internal/ecp"
	"github.com/shelfmark/productpipeline/internal/models"
)

// completeECPThreshold is the ECP total at or above which a product is
// Complete regardless of which required fields are populated (§4.4 rule 2).
var completeECPThreshold = decimal.NewFromFloat(90.0)

// confidenceFloor is the per-field confidence below which a field is
// treated as unpopulated, when confidences are supplied (§4.4 Confidence filter).
var confidenceFloor = decimal.NewFromFloat(0.5)

// Assessment is the Quality Gate's result (§4.4 Result).
type Assessment struct {
	Status                ProductStatusOrString
	CompletenessScore      decimal.Decimal
	PopulatedFields        []string
	MissingRequiredFields  []string
	MissingORFields        [][]string
	EnrichmentPriority     int
	NeedsEnrichment        bool
	RejectionReason        string
	LowConfidenceFields    []string
	ECPByGroup             map[string]ecp.GroupResult
	ECPTotal               decimal.Decimal
}

// ProductStatusOrString is just models.ProductStatusEnum; named here for
// doc clarity at the call site (Assessment.Status reads like a sentence).
type ProductStatusOrString = models.ProductStatusEnum

// Input bundles everything the Gate needs (§4.4 "Pure function of the
// field map, an optional precomputed ECP total, and per-type config").
type Input struct {
	Fields          models.FieldMap
	Confidences     map[string]decimal.Decimal // optional; see Confidence filter
	ProductType     models.ProductTypeEnum
	Config          models.ProductTypeConfig
	PrecomputedECP  *decimal.Decimal
	ECPByGroup      map[string]ecp.GroupResult
}

// Assess classifies a product per §4.4's promotion rules, evaluated
// top-down with first match wins.
func Assess(in Input) Assessment {
	populated, lowConfidence := populatedSet(in.Fields, in.Confidences)

	name, hasName := in.Fields["name"]
	if !hasName || !ecp.IsPopulated(name) {
		return Assessment{
			Status:              models.ProductStatusRejected,
			CompletenessScore:   decimal.Zero,
			RejectionReason:     "Missing required field: name",
			NeedsEnrichment:     false,
			EnrichmentPriority:  clampPriority(10, decimal.Zero),
			ECPByGroup:          in.ECPByGroup,
			LowConfidenceFields: lowConfidence,
		}
	}

	ecpTotal := decimal.Zero
	if in.PrecomputedECP != nil {
		ecpTotal = *in.PrecomputedECP
	}

	if ecpTotal.GreaterThanOrEqual(completeECPThreshold) {
		completeness := ecpTotal.Div(decimal.NewFromInt(100))
		return Assessment{
			Status:              models.ProductStatusComplete,
			CompletenessScore:   completeness,
			NeedsEnrichment:     false,
			PopulatedFields:     sortedKeys(populated),
			EnrichmentPriority:  clampPriority(1, completeness),
			ECPByGroup:          in.ECPByGroup,
			ECPTotal:            ecpTotal,
			LowConfidenceFields: lowConfidence,
		}
	}

	cfg := applyCategoryExemptions(in.Config, in.Fields)

	baselineOK, baselineMissingReq, baselineMissingOR := evalRequiredAndOR(
		populated, cfg.BaselineRequiredFields, waiveORGroups(cfg.BaselineORFields, cfg.BaselineORExceptions, in.Fields))
	enrichedOK, enrichedMissingReq, enrichedMissingOR := evalRequiredAndOR(
		populated, cfg.EnrichedRequiredFields, cfg.EnrichedORFields)
	partialOK, partialMissingReq, _ := evalRequiredAndOR(populated, cfg.PartialRequiredFields, nil)
	skeletonOK, skeletonMissingReq, _ := evalRequiredAndOR(populated, cfg.SkeletonRequiredFields, nil)

	completeness := completenessScore(populated, cfg)

	switch {
	case baselineOK && enrichedOK:
		return finish(models.ProductStatusEnriched, completeness, populated, nil, nil, true, in.ECPByGroup, ecpTotal, lowConfidence)
	case baselineOK:
		missingReq := append([]string{}, enrichedMissingReq...)
		return finish(models.ProductStatusBaseline, completeness, populated, missingReq, enrichedMissingOR, true, in.ECPByGroup, ecpTotal, lowConfidence)
	case partialOK:
		return finish(models.ProductStatusPartial, completeness, populated, baselineMissingReq, baselineMissingOR, true, in.ECPByGroup, ecpTotal, lowConfidence)
	case skeletonOK:
		return finish(models.ProductStatusSkeleton, completeness, populated, partialMissingReq, nil, true, in.ECPByGroup, ecpTotal, lowConfidence)
	default:
		a := finish(models.ProductStatusRejected, completeness, populated, skeletonMissingReq, nil, true, in.ECPByGroup, ecpTotal, lowConfidence)
		a.RejectionReason = "Missing required fields for Skeleton status"
		return a
	}
}

func finish(status models.ProductStatusEnum, completeness decimal.Decimal, populated map[string]bool,
	missingReq []string, missingOR [][]string, needsEnrichment bool,
	ecpByGroup map[string]ecp.GroupResult, ecpTotal decimal.Decimal, lowConfidence []string) Assessment {
	return Assessment{
		Status:                status,
		CompletenessScore:     completeness,
		PopulatedFields:       sortedKeys(populated),
		MissingRequiredFields: missingReq,
		MissingORFields:       missingOR,
		NeedsEnrichment:       needsEnrichment && status != models.ProductStatusComplete,
		EnrichmentPriority:    clampPriority(basePriority(status), completeness),
		ECPByGroup:            ecpByGroup,
		ECPTotal:              ecpTotal,
		LowConfidenceFields:   lowConfidence,
	}
}

// basePriority implements §4.4 "Enrichment priority": the base value per
// status before the completeness adjustment.
func basePriority(status models.ProductStatusEnum) int {
	switch status {
	case models.ProductStatusRejected:
		return 10
	case models.ProductStatusSkeleton:
		return 9
	case models.ProductStatusPartial:
		return 7
	case models.ProductStatusBaseline:
		return 5
	case models.ProductStatusEnriched:
		return 3
	case models.ProductStatusComplete:
		return 1
	default:
		return 10
	}
}

// clampPriority adjusts base by (1 - completeness) * 2, clamped to [1, 10]
// (§4.4 Enrichment priority).
func clampPriority(base int, completeness decimal.Decimal) int {
	one := decimal.NewFromInt(1)
	two := decimal.NewFromInt(2)
	adjustment := one.Sub(completeness).Mul(two)
	value := decimal.NewFromInt(int64(base)).Add(adjustment)
	f, _ := value.Float64()
	n := int(f + 0.5)
	if n < 1 {
		n = 1
	}
	if n > 10 {
		n = 10
	}
	return n
}

func completenessScore(populated map[string]bool, cfg models.ProductTypeConfig) decimal.Decimal {
	all := map[string]bool{}
	for _, f := range cfg.SkeletonRequiredFields {
		all[f] = true
	}
	for _, f := range cfg.PartialRequiredFields {
		all[f] = true
	}
	for _, f := range cfg.BaselineRequiredFields {
		all[f] = true
	}
	for _, f := range cfg.EnrichedRequiredFields {
		all[f] = true
	}
	if len(all) == 0 {
		return decimal.Zero
	}
	hit := 0
	for f := range all {
		if populated[f] {
			hit++
		}
	}
	return decimal.NewFromInt(int64(hit)).Div(decimal.NewFromInt(int64(len(all))))
}

// populatedSet applies the confidence filter (§4.4): a field whose
// confidence is below 0.5 is treated as not populated for all purposes.
// Each field carries one confidence value; list-valued fields are not given
// per-item confidences and nothing here averages them.
// internal/productwriter calls Assess without confidences.
func populatedSet(fields models.FieldMap, confidences map[string]decimal.Decimal) (map[string]bool, []string) {
	populated := map[string]bool{}
	var low []string
	for k, v := range fields {
		if !ecp.IsPopulated(v) {
			continue
		}
		if confidences != nil {
			if conf, ok := confidences[k]; ok && conf.LessThan(confidenceFloor) {
				low = append(low, k)
				continue
			}
		}
		populated[k] = true
	}
	sort.Strings(low)
	return populated, low
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// evalRequiredAndOR reports whether every required field AND every OR-group
// is satisfied, returning the specific missing required fields and
// unsatisfied OR-groups (§4.4 OR-group semantics: a list of OR-groups is
// satisfied iff every group is individually satisfied).
func evalRequiredAndOR(populated map[string]bool, required []string, orGroups []models.ORFieldGroup) (bool, []string, [][]string) {
	var missingReq []string
	for _, f := range required {
		if !populated[f] {
			missingReq = append(missingReq, f)
		}
	}
	var missingOR [][]string
	for _, group := range orGroups {
		satisfied := false
		for _, f := range group {
			if populated[f] {
				satisfied = true
				break
			}
		}
		if !satisfied {
			missingOR = append(missingOR, []string(group))
		}
	}
	return len(missingReq) == 0 && len(missingOR) == 0, missingReq, missingOR
}

// applyCategoryExemptions removes ExemptableFields from Partial and
// Baseline required-field lists when the product's category is in
// CategoryExemptLabels (§4.4 Category exemptions).
func applyCategoryExemptions(cfg models.ProductTypeConfig, fields models.FieldMap) models.ProductTypeConfig {
	category, _ := fields["category"].(string)
	if category == "" {
		return cfg
	}
	exempt := false
	lowerCategory := strings.ToLower(strings.TrimSpace(category))
	for _, label := range cfg.CategoryExemptLabels {
		if strings.ToLower(label) == lowerCategory {
			exempt = true
			break
		}
	}
	if !exempt {
		return cfg
	}
	out := cfg
	out.PartialRequiredFields = removeAll(cfg.PartialRequiredFields, cfg.ExemptableFields)
	out.BaselineRequiredFields = removeAll(cfg.BaselineRequiredFields, cfg.ExemptableFields)
	return out
}

func removeAll(list []string, remove []string) []string {
	removeSet := map[string]bool{}
	for _, f := range remove {
		removeSet[f] = true
	}
	out := make([]string, 0, len(list))
	for _, f := range list {
		if !removeSet[f] {
			out = append(out, f)
		}
	}
	return out
}

// waiveORGroups removes an OR-group entirely (waived, not satisfied) when a
// FieldExceptionRule's trigger field holds one of its trigger values,
// case-insensitively (§4.4 Style exceptions).
func waiveORGroups(groups []models.ORFieldGroup, exceptions []models.FieldExceptionRule, fields models.FieldMap) []models.ORFieldGroup {
	if len(exceptions) == 0 {
		return groups
	}
	waived := map[string]bool{}
	for _, rule := range exceptions {
		triggerVal, _ := fields[rule.TriggerField].(string)
		triggerVal = strings.ToLower(strings.TrimSpace(triggerVal))
		for _, tv := range rule.TriggerValues {
			if strings.ToLower(tv) == triggerVal {
				waived[groupKey(rule.WaivedGroup)] = true
				break
			}
		}
	}
	if len(waived) == 0 {
		return groups
	}
	out := make([]models.ORFieldGroup, 0, len(groups))
	for _, g := range groups {
		if waived[groupKey(g)] {
			continue
		}
		out = append(out, g)
	}
	return out
}

func groupKey(g models.ORFieldGroup) string {
	return strings.Join(g, "|")
}
