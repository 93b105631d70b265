package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayOf_NormalizesToUTCMidnight(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// 2024-03-02 05:00 in UTC+9 is 2024-03-01 20:00 UTC
	d := DayOf(time.Date(2024, 3, 2, 5, 0, 0, 0, loc))

	assert.Equal(t, "2024-03-01", d.String())
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), d.Start())
	assert.Equal(t, time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC), d.End())
}

func TestSnapshotDay_Contains(t *testing.T) {
	d, err := ParseSnapshotDay("2024-12-31")
	require.NoError(t, err)

	assert.True(t, d.Contains(d.Start()))
	assert.True(t, d.Contains(d.End().Add(-time.Nanosecond)))
	assert.False(t, d.Contains(d.End()))
	assert.False(t, d.Contains(d.Start().Add(-time.Nanosecond)))
	assert.Equal(t, "2025-01-01", d.AddDays(1).String())
}

func TestSnapshotDay_Ordering(t *testing.T) {
	a, _ := ParseSnapshotDay("2024-01-01")
	b, _ := ParseSnapshotDay("2024-01-02")

	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.True(t, a.Equal(DayOf(a.Start().Add(23*time.Hour))))
}

func TestParseSnapshotDay_Invalid(t *testing.T) {
	_, err := ParseSnapshotDay("2024-13-01")
	assert.Error(t, err)

	_, err = ParseSnapshotDay("yesterday")
	assert.Error(t, err)
}

func TestSnapshotDay_JSON(t *testing.T) {
	d, _ := ParseSnapshotDay("2024-06-15")

	data, err := json.Marshal(struct {
		Day SnapshotDay `json:"day"`
	}{d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"day":"2024-06-15"}`, string(data))

	var decoded struct {
		Day SnapshotDay `json:"day"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, d.Equal(decoded.Day))
}

func TestSnapshotDay_Scan(t *testing.T) {
	var d SnapshotDay
	require.NoError(t, d.Scan(time.Date(2024, 2, 29, 13, 0, 0, 0, time.UTC)))
	assert.Equal(t, "2024-02-29", d.String())

	require.NoError(t, d.Scan("2024-03-01"))
	assert.Equal(t, "2024-03-01", d.String())

	assert.Error(t, d.Scan(42))
}

func TestParseMarketCapTracking(t *testing.T) {
	assert.Equal(t, TrackingEquity, ParseMarketCapTracking("Public Listing"))
	assert.Equal(t, TrackingCrypto, ParseMarketCapTracking("Crypto"))
	assert.Equal(t, TrackingNone, ParseMarketCapTracking(""))
	assert.Equal(t, TrackingNone, ParseMarketCapTracking("public listing"))
	assert.Equal(t, TrackingNone, ParseMarketCapTracking("Private"))
}

func TestEnumValidity(t *testing.T) {
	assert.True(t, CompanyStatusPending.IsValid())
	assert.False(t, CompanyStatus("DELETED").IsValid())
	assert.True(t, AccountingWalletTracking.IsValid())
	assert.False(t, AccountingType("GUESS").IsValid())
}
