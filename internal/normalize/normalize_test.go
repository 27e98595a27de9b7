package normalize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_EnglishKeys(t *testing.T) {
	n := New()

	fields := n.Normalize(map[string]interface{}{
		"PARCEL_ID": "P-001",
		"ZONE":      "Z1",
		"SUB_ZONE":  "Z1-A",
		"OWNER":     "Somchai",
		"CROP_TYPE": "rice",
		"LAND_USE":  "agriculture",
	})

	assert.Equal(t, "P-001", fields.ParcelID)
	assert.Equal(t, "Z1", fields.Zone)
	assert.Equal(t, "Z1-A", fields.SubZone)
	assert.Equal(t, "Somchai", fields.OwnerName)
	assert.Equal(t, "rice", fields.CropType)
	assert.Equal(t, "agriculture", fields.LandUseType)
	assert.False(t, fields.GeneratedID)
	assert.Empty(t, fields.Attributes)
}

func TestNormalize_ThaiKeys(t *testing.T) {
	n := New()

	fields := n.Normalize(map[string]interface{}{
		"รหัสแปลง": "TH-42",
		"โซน":      "Z9",
		"เจ้าของ":  "สมชาย",
		"ชนิดพืช":  "ข้าว",
	})

	assert.Equal(t, "TH-42", fields.ParcelID)
	assert.Equal(t, "Z9", fields.Zone)
	assert.Equal(t, "สมชาย", fields.OwnerName)
	assert.Equal(t, "ข้าว", fields.CropType)
}

func TestNormalize_CaseInsensitive(t *testing.T) {
	n := New()

	fields := n.Normalize(map[string]interface{}{
		"ObjectId":   "7",
		"Zone_Code":  "Z3",
		"OwnerName":  "A",
		"LandUse":    "orchard",
		" CROPTYPE ": "maize",
	})

	assert.Equal(t, "7", fields.ParcelID)
	assert.Equal(t, "Z3", fields.Zone)
	assert.Equal(t, "A", fields.OwnerName)
	assert.Equal(t, "orchard", fields.LandUseType)
	assert.Equal(t, "maize", fields.CropType)
}

func TestNormalize_UnmatchedKeysPreserved(t *testing.T) {
	n := New()

	fields := n.Normalize(map[string]interface{}{
		"PARCEL_ID":   "P-1",
		"SOIL_CLASS":  "loam",
		"SURVEY_YEAR": "2023",
	})

	assert.Equal(t, "P-1", fields.ParcelID)
	assert.Equal(t, "loam", fields.Attributes["SOIL_CLASS"])
	assert.Equal(t, "2023", fields.Attributes["SURVEY_YEAR"])
}

func TestNormalize_GeneratedIDFallback(t *testing.T) {
	n := New()

	fields := n.Normalize(map[string]interface{}{
		"ZONE": "Z1",
	})

	// Record is never dropped: it gets a generated identifier and a flag.
	require.NotEmpty(t, fields.ParcelID)
	assert.True(t, strings.HasPrefix(fields.ParcelID, "gen-"))
	assert.True(t, fields.GeneratedID)
	assert.Equal(t, true, fields.Attributes[GeneratedIDKey])
}

func TestNormalize_GeneratedIDsAreUnique(t *testing.T) {
	n := New()

	a := n.Normalize(map[string]interface{}{})
	b := n.Normalize(map[string]interface{}{})

	assert.NotEqual(t, a.ParcelID, b.ParcelID)
}

func TestNormalize_CandidateOrderWins(t *testing.T) {
	n := New()

	// PARCEL_ID is declared before OBJECTID, so it wins every time and the
	// losing synonym survives in the bag.
	for i := 0; i < 100; i++ {
		fields := n.Normalize(map[string]interface{}{
			"PARCEL_ID": "P-1",
			"OBJECTID":  "99",
		})

		require.Equal(t, "P-1", fields.ParcelID)
		require.Equal(t, "99", fields.Attributes["OBJECTID"])
		require.NotContains(t, fields.Attributes, "PARCEL_ID")
	}
}

func TestNormalize_LosingSynonymsStayInBag(t *testing.T) {
	n := New()

	for i := 0; i < 100; i++ {
		fields := n.Normalize(map[string]interface{}{
			"ZONE":      "Z1",
			"ZONE_CODE": "ZC-9",
		})

		require.Equal(t, "Z1", fields.Zone)
		require.Equal(t, "ZC-9", fields.Attributes["ZONE_CODE"], "losing synonym must not vanish")
	}
}

func TestNormalize_SameKeyDifferentCaseIsDeterministic(t *testing.T) {
	n := New()

	// Both keys fold to "zone"; the smaller raw key wins the field and the
	// other stays in the bag, run after run.
	for i := 0; i < 100; i++ {
		fields := n.Normalize(map[string]interface{}{
			"ZONE": "upper",
			"Zone": "mixed",
		})

		require.Equal(t, "upper", fields.Zone)
		require.Equal(t, "mixed", fields.Attributes["Zone"])
	}
}

func TestNormalize_TrimsPaddingAndNulls(t *testing.T) {
	n := New()

	fields := n.Normalize(map[string]interface{}{
		"PARCEL_ID": "P-5   \x00\x00",
		"OWNER":     "  Somsak \x00",
	})

	assert.Equal(t, "P-5", fields.ParcelID)
	assert.Equal(t, "Somsak", fields.OwnerName)
}

func TestNormalize_NonStringValues(t *testing.T) {
	n := New()

	fields := n.Normalize(map[string]interface{}{
		"OBJECTID": 42,
		"extra":    3.5,
	})

	assert.Equal(t, "42", fields.ParcelID)
	assert.Equal(t, 3.5, fields.Attributes["extra"])
}
