package summary

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plant-telemetry-pipeline/internal/models"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func timePtr(t time.Time) *time.Time { return &t }

func val(t *testing.T, f *float64) float64 {
	t.Helper()
	require.NotNil(t, f)
	return *f
}

func reading(plantID int, taken time.Time, temp, moisture float64, watered *time.Time) models.SummaryInput {
	return models.SummaryInput{
		RecordingTaken: taken,
		PlantID:        plantID,
		PlantName:      strPtr("Test Plant"),
		ScientificName: strPtr("Test species"),
		BotanistName:   strPtr("Test Botanist"),
		BotanistEmail:  strPtr("test@lnhm.co.uk"),
		BotanistPhone:  strPtr("+44-000-000-0000"),
		Temperature:    floatPtr(temp),
		SoilMoisture:   floatPtr(moisture),
		LastWatered:    watered,
	}
}

func sampleReadings() []models.SummaryInput {
	day1 := time.Date(2026, 1, 27, 9, 0, 0, 0, time.UTC)
	day2 := time.Date(2026, 1, 28, 9, 0, 0, 0, time.UTC)
	return []models.SummaryInput{
		reading(1, day1, 20, 40, timePtr(day1.Add(-2*time.Hour))),
		reading(1, day1.Add(time.Hour), 22, 42, timePtr(day1.Add(-2*time.Hour))),
		reading(1, day1.Add(2*time.Hour), 24, 44, nil),
		reading(2, day1, 18, 30, nil),
		reading(1, day2, 21, 41, timePtr(day2.Add(-time.Hour))),
		reading(2, day2, 19, 31, timePtr(day1.Add(-26*time.Hour))),
	}
}

func TestSummarizeBasicAggregation(t *testing.T) {
	out := Summarize(sampleReadings())
	require.Len(t, out, 4)

	// Newest day first, plant ID ascending within a day
	assert.Equal(t, 28, out[0].ReadingDate.Day())
	assert.Equal(t, 1, out[0].PlantID)
	assert.Equal(t, 28, out[1].ReadingDate.Day())
	assert.Equal(t, 2, out[1].PlantID)
	assert.Equal(t, 27, out[2].ReadingDate.Day())
	assert.Equal(t, 1, out[2].PlantID)
	assert.Equal(t, 2, out[3].PlantID)
}

func TestSummarizeTemperatureStatistics(t *testing.T) {
	out := Summarize(sampleReadings())
	plant1 := out[2]

	assert.Equal(t, 20.0, val(t, plant1.MinTemperature))
	assert.Equal(t, 24.0, val(t, plant1.MaxTemperature))
	assert.InDelta(t, 22.0, val(t, plant1.AvgTemperature), 1e-9)
	assert.InDelta(t, 22.0, val(t, plant1.MedianTemperature), 1e-9)
	assert.InDelta(t, 21.0, val(t, plant1.Percentile25Temperature), 1e-9)
	assert.InDelta(t, 23.0, val(t, plant1.Percentile75Temperature), 1e-9)
	assert.Equal(t, 3, plant1.TemperatureSamples)
}

func TestSummarizeHumidityStatistics(t *testing.T) {
	plant1 := Summarize(sampleReadings())[2]

	assert.Equal(t, 40.0, val(t, plant1.MinHumidity))
	assert.Equal(t, 44.0, val(t, plant1.MaxHumidity))
	assert.InDelta(t, 42.0, val(t, plant1.AvgHumidity), 1e-9)
	assert.InDelta(t, 42.0, val(t, plant1.MedianHumidity), 1e-9)
}

func TestSummarizeWateringCount(t *testing.T) {
	out := Summarize(sampleReadings())

	// Two readings share one watering event
	assert.Equal(t, 1, out[2].TimesWatered)
	assert.Equal(t, 0, out[3].TimesWatered)
	assert.Equal(t, 1, out[1].TimesWatered)
}

func TestSummarizeEmpty(t *testing.T) {
	out := Summarize(nil)
	require.NotNil(t, out)
	assert.Empty(t, out)
}

func TestSummarizeSingleReading(t *testing.T) {
	taken := time.Date(2026, 1, 28, 12, 0, 0, 0, time.UTC)
	out := Summarize([]models.SummaryInput{reading(1, taken, 22, 45, timePtr(taken.Add(-2*time.Hour)))})
	require.Len(t, out, 1)

	s := out[0]
	for _, v := range []*float64{s.MinTemperature, s.MaxTemperature, s.AvgTemperature, s.MedianTemperature, s.Percentile25Temperature, s.Percentile75Temperature} {
		assert.Equal(t, 22.0, val(t, v))
	}
	for _, v := range []*float64{s.MinHumidity, s.MaxHumidity, s.AvgHumidity, s.MedianHumidity, s.Percentile25Humidity, s.Percentile75Humidity} {
		assert.Equal(t, 45.0, val(t, v))
	}
	assert.Equal(t, 1, s.TimesWatered)
}

func TestSummarizeExtremeValues(t *testing.T) {
	base := time.Date(2026, 1, 28, 0, 0, 0, 0, time.UTC)
	var rows []models.SummaryInput
	temps := []float64{10, 15, 25, 40}
	moistures := []float64{0, 25, 75, 100}
	for i := range temps {
		rows = append(rows, reading(1, base.Add(time.Duration(i)*time.Minute), temps[i], moistures[i], timePtr(base.Add(-time.Duration(i)*time.Hour))))
	}

	out := Summarize(rows)
	require.Len(t, out, 1)
	s := out[0]

	assert.Equal(t, 10.0, val(t, s.MinTemperature))
	assert.Equal(t, 40.0, val(t, s.MaxTemperature))
	assert.InDelta(t, 22.5, val(t, s.AvgTemperature), 1e-9)
	assert.InDelta(t, 20.0, val(t, s.MedianTemperature), 1e-9)
	assert.InDelta(t, 13.75, val(t, s.Percentile25Temperature), 1e-9)
	assert.InDelta(t, 28.75, val(t, s.Percentile75Temperature), 1e-9)

	assert.Equal(t, 0.0, val(t, s.MinHumidity))
	assert.Equal(t, 100.0, val(t, s.MaxHumidity))
	assert.InDelta(t, 50.0, val(t, s.MedianHumidity), 1e-9)

	// Midnight and the three hours before it span two calendar days
	assert.Equal(t, 2, s.TimesWatered)
}

func TestSummarizePreservesBotanistInfo(t *testing.T) {
	s := Summarize(sampleReadings())[0]
	assert.Equal(t, "Test Botanist", *s.BotanistName)
	assert.Equal(t, "test@lnhm.co.uk", *s.BotanistEmail)
	assert.Equal(t, "+44-000-000-0000", *s.BotanistPhone)
	assert.Equal(t, "Test Plant", *s.PlantName)
}

func TestSummarizeNullGroupKeys(t *testing.T) {
	taken := time.Date(2026, 1, 28, 12, 0, 0, 0, time.UTC)
	withPhone := reading(1, taken, 20, 40, nil)
	withoutPhone := reading(1, taken, 30, 50, nil)
	withoutPhone.BotanistPhone = nil

	out := Summarize([]models.SummaryInput{withPhone, withoutPhone})
	require.Len(t, out, 2)
}

func TestSummarizeIgnoresMissingValues(t *testing.T) {
	taken := time.Date(2026, 1, 28, 12, 0, 0, 0, time.UTC)
	a := reading(1, taken, 20, 40, nil)
	b := reading(1, taken.Add(time.Hour), 30, 0, nil)
	b.SoilMoisture = nil
	c := reading(1, taken.Add(2*time.Hour), 0, 0, nil)
	c.Temperature = nil
	c.SoilMoisture = nil

	s := Summarize([]models.SummaryInput{a, b, c})[0]
	assert.Equal(t, 2, s.TemperatureSamples)
	assert.InDelta(t, 25.0, val(t, s.AvgTemperature), 1e-9)
	assert.Equal(t, 1, s.HumiditySamples)
	assert.Equal(t, 40.0, val(t, s.MedianHumidity))
}

func TestSummarizeNoValuesForMetric(t *testing.T) {
	taken := time.Date(2026, 1, 28, 12, 0, 0, 0, time.UTC)
	r := reading(1, taken, 0, 40, nil)
	r.Temperature = nil

	s := Summarize([]models.SummaryInput{r})[0]
	assert.Zero(t, s.TemperatureSamples)
	for _, v := range []*float64{s.MinTemperature, s.MaxTemperature, s.AvgTemperature, s.MedianTemperature, s.Percentile25Temperature, s.Percentile75Temperature} {
		assert.Nil(t, v)
	}

	assert.Equal(t, 1, s.HumiditySamples)
	assert.Equal(t, 40.0, val(t, s.MinHumidity))
}

func TestSummarizeZeroIsAValue(t *testing.T) {
	taken := time.Date(2026, 1, 28, 12, 0, 0, 0, time.UTC)
	s := Summarize([]models.SummaryInput{reading(1, taken, 0, 0, nil)})[0]

	require.NotNil(t, s.MinTemperature)
	assert.Equal(t, 0.0, *s.MinTemperature)
	require.NotNil(t, s.MedianHumidity)
	assert.Equal(t, 0.0, *s.MedianHumidity)
}

func TestSummarizePartitionColumns(t *testing.T) {
	taken := time.Date(2026, 3, 5, 23, 30, 0, 0, time.UTC)
	s := Summarize([]models.SummaryInput{reading(1, taken, 1, 1, nil)})[0]

	assert.Equal(t, 2026, s.Year)
	assert.Equal(t, "03", s.Month)
	assert.Equal(t, "05", s.Day)
	assert.Equal(t, time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC), s.ReadingDate)
	assert.Equal(t, models.PartitionKey{Year: 2026, Month: "03", Day: "05"}, s.Partition())
}

func TestSummarizeUsesUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*60*60)
	taken := time.Date(2026, 3, 6, 1, 0, 0, 0, loc)

	s := Summarize([]models.SummaryInput{reading(1, taken, 1, 1, nil)})[0]
	assert.Equal(t, "05", s.Day)
}

func TestQuantile(t *testing.T) {
	sorted := []float64{10, 15, 25, 40}

	assert.InDelta(t, 20.0, Quantile(sorted, 0.5), 1e-9)
	assert.InDelta(t, 13.75, Quantile(sorted, 0.25), 1e-9)
	assert.InDelta(t, 28.75, Quantile(sorted, 0.75), 1e-9)
	assert.Equal(t, 10.0, Quantile(sorted, 0))
	assert.Equal(t, 40.0, Quantile(sorted, 1))
	assert.Equal(t, 40.0, Quantile(sorted, 2))
	assert.Equal(t, 7.0, Quantile([]float64{7}, 0.3))
	assert.True(t, math.IsNaN(Quantile(nil, 0.5)))
}
