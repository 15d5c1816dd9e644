package models

import "time"

// FlatRecord is a RawRecord with its nested objects flattened to nullable columns
type FlatRecord struct {
	PlantID        *int
	Name           *string
	ScientificName *string
	SoilMoisture   *float64
	Temperature    *float64
	RecordingTaken *string
	LastWatered    *string

	BotanistName  *string
	BotanistEmail *string
	BotanistPhone *string

	OriginCity      *string
	OriginCountry   *string
	OriginLatitude  *string
	OriginLongitude *string

	ImageLicenseURL  *string
	ImageOriginalURL *string
	ImageThumbnail   *string
}

// OriginRow is a validated origin location ready for loading
type OriginRow struct {
	City      string
	Country   string
	Latitude  float64
	Longitude float64
}

// BotanistRow is a cleaned botanist keyed by email
type BotanistRow struct {
	Name  string
	Email string
	Phone *string
}

// PlantRow is a cleaned plant record. Origin and botanist are referenced by
// natural keys and resolved to surrogate IDs by the loader.
type PlantRow struct {
	PlantID         int
	Name            *string
	ScientificName  *string
	BotanistEmail   *string
	OriginLatitude  *float64
	OriginLongitude *float64
	ImageLicenseURL *string
	ImageURL        *string
	Thumbnail       *string
}

// ReadingRow is one sensor reading
type ReadingRow struct {
	PlantID        int
	SoilMoisture   *float64
	Temperature    *float64
	RecordingTaken *time.Time
	LastWatered    *time.Time
}

// SummaryInput is a reading joined with its plant and botanist
type SummaryInput struct {
	RecordingTaken time.Time
	PlantID        int
	PlantName      *string
	ScientificName *string
	BotanistName   *string
	BotanistEmail  *string
	BotanistPhone  *string
	Temperature    *float64
	SoilMoisture   *float64
	LastWatered    *time.Time
}

// DailySummary holds per-plant statistics for one calendar day
type DailySummary struct {
	ReadingDate    time.Time
	PlantID        int
	PlantName      *string
	ScientificName *string
	BotanistName   *string
	BotanistEmail  *string
	BotanistPhone  *string

	// Statistics are nil when the group has no value for the metric
	MinTemperature          *float64
	MaxTemperature          *float64
	AvgTemperature          *float64
	MedianTemperature       *float64
	Percentile25Temperature *float64
	Percentile75Temperature *float64

	MinHumidity          *float64
	MaxHumidity          *float64
	AvgHumidity          *float64
	MedianHumidity       *float64
	Percentile25Humidity *float64
	Percentile75Humidity *float64

	TimesWatered int

	// Number of non-null values behind each group of statistics
	TemperatureSamples int
	HumiditySamples    int

	Year  int
	Month string
	Day   string
}

// PartitionKey identifies the year/month/day partition of a summary row
type PartitionKey struct {
	Year  int
	Month string
	Day   string
}

// Partition returns the row's partition key
func (s DailySummary) Partition() PartitionKey {
	return PartitionKey{Year: s.Year, Month: s.Month, Day: s.Day}
}
