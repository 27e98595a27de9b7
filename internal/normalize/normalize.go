// Package normalize maps raw shapefile attribute keys onto canonical parcel
// fields. Survey archives arrive from many registry offices with inconsistent
// column naming, in English and Thai, so matching is case-insensitive against
// an ordered candidate table rather than ad hoc string checks.
package normalize

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GeneratedIDKey flags a record whose parcel identifier had to be generated
// because none of the recognized identifier columns were present. The flag
// lives in the attribute bag so the data-quality condition stays auditable.
const GeneratedIDKey = "_generated_parcel_id"

// DuplicateIDKey flags a record whose parcel identifier collided with an
// earlier record in the same zone of one batch (split parcels exported as
// separate features). The original identifier is preserved under this key;
// the row itself carries a suffixed identifier so the zone's current
// generation keeps at most one row per identifier.
const DuplicateIDKey = "_duplicate_parcel_id"

// ParcelFields holds the canonical fields extracted from one raw attribute map.
type ParcelFields struct {
	ParcelID    string
	Zone        string
	SubZone     string
	OwnerName   string
	OwnerID     string
	CropType    string
	LandUseType string
	// GeneratedID is true when ParcelID was synthesized.
	GeneratedID bool
	// Attributes preserves every raw key that did not map to a canonical
	// field, verbatim, for later inspection.
	Attributes map[string]interface{}
}

// fieldMapping lists the raw column names accepted for one canonical field.
// Candidates are matched lowercased, first match wins.
type fieldMapping struct {
	target     string
	candidates []string
}

const (
	targetParcelID    = "parcel_id"
	targetZone        = "zone"
	targetSubZone     = "sub_zone"
	targetOwnerName   = "owner_name"
	targetOwnerID     = "owner_id"
	targetCropType    = "crop_type"
	targetLandUseType = "land_use_type"
)

// canonicalFields is the declarative field table. English candidates come from
// the common registry export formats; Thai candidates from provincial offices
// that export with localized column headers.
var canonicalFields = []fieldMapping{
	{targetParcelID, []string{"parcel_id", "parcelid", "id", "objectid", "fid", "รหัสแปลง", "เลขที่แปลง"}},
	{targetZone, []string{"zone", "zone_id", "zone_code", "โซน", "เขต"}},
	{targetSubZone, []string{"sub_zone", "subzone", "sub_zone_id", "โซนย่อย"}},
	{targetOwnerName, []string{"owner", "owner_name", "ownername", "เจ้าของ", "ชื่อเจ้าของ"}},
	{targetOwnerID, []string{"owner_id", "ownerid", "citizen_id", "เลขบัตรประชาชน"}},
	{targetCropType, []string{"crop", "crop_type", "croptype", "พืช", "ชนิดพืช"}},
	{targetLandUseType, []string{"land_use", "landuse", "land_use_type", "การใช้ที่ดิน"}},
}

// Normalizer resolves raw attribute maps against the canonical field table.
type Normalizer struct {
	fields []fieldMapping
}

// New creates a Normalizer from the built-in canonical field table.
func New() *Normalizer {
	return &Normalizer{fields: canonicalFields}
}

// Normalize extracts canonical parcel fields from one raw attribute map.
// Candidates are evaluated in declared order, so which synonym wins is
// deterministic: PARCEL_ID always beats OBJECTID regardless of map layout.
// Losing synonyms and unmatched keys are preserved verbatim in the returned
// attribute bag. A record is never dropped for a missing identifier: a
// generated id is assigned and flagged instead.
func (n *Normalizer) Normalize(raw map[string]interface{}) ParcelFields {
	fields := ParcelFields{
		Attributes: make(map[string]interface{}),
	}

	// Index raw keys by lowercased form. Two raw keys folding to the same
	// candidate (ZONE and Zone) tie-break on the smaller raw key so the
	// outcome never depends on map order.
	byLower := make(map[string]string, len(raw))
	for key := range raw {
		lower := strings.ToLower(strings.TrimSpace(key))
		if existing, ok := byLower[lower]; !ok || key < existing {
			byLower[lower] = key
		}
	}

	consumed := make(map[string]struct{}, len(n.fields))
	for _, fm := range n.fields {
		for _, cand := range fm.candidates {
			rawKey, ok := byLower[cand]
			if !ok {
				continue
			}

			str := stringValue(raw[rawKey])
			switch fm.target {
			case targetParcelID:
				fields.ParcelID = str
			case targetZone:
				fields.Zone = str
			case targetSubZone:
				fields.SubZone = str
			case targetOwnerName:
				fields.OwnerName = str
			case targetOwnerID:
				fields.OwnerID = str
			case targetCropType:
				fields.CropType = str
			case targetLandUseType:
				fields.LandUseType = str
			}
			consumed[rawKey] = struct{}{}
			break
		}
	}

	for key, value := range raw {
		if _, ok := consumed[key]; ok {
			continue
		}
		fields.Attributes[key] = value
	}

	if fields.ParcelID == "" {
		fields.ParcelID = "gen-" + uuid.New().String()
		fields.GeneratedID = true
		fields.Attributes[GeneratedIDKey] = true
	}

	return fields
}

// stringValue renders a raw attribute value as a trimmed string.
// DBF readers return strings padded with spaces and NUL bytes.
func stringValue(value interface{}) string {
	if value == nil {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		s = fmt.Sprint(value)
	}
	return strings.TrimSpace(strings.Trim(s, "\x00 "))
}
