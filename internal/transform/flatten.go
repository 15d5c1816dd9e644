package transform

import "plant-telemetry-pipeline/internal/models"

// Flatten maps nested botanist, origin and image objects onto flat
// nullable columns. Missing nested objects leave their columns nil.
func Flatten(records []models.RawRecord) []models.FlatRecord {
	flat := make([]models.FlatRecord, 0, len(records))
	for _, r := range records {
		row := models.FlatRecord{
			PlantID:        r.PlantID,
			Name:           r.Name,
			ScientificName: r.ScientificName.First(),
			SoilMoisture:   r.SoilMoisture,
			Temperature:    r.Temperature,
			RecordingTaken: r.RecordingTaken,
			LastWatered:    r.LastWatered,
		}

		botanist := r.Botanist
		if botanist == nil {
			botanist = &models.Botanist{}
		}
		row.BotanistName = botanist.Name
		row.BotanistEmail = botanist.Email
		row.BotanistPhone = botanist.Phone

		origin := r.OriginLocation
		if origin == nil {
			origin = &models.OriginLocation{}
		}
		row.OriginCity = origin.City
		row.OriginCountry = origin.Country
		row.OriginLatitude = origin.Latitude.Ptr()
		row.OriginLongitude = origin.Longitude.Ptr()

		images := r.Images
		if images == nil {
			images = &models.Images{}
		}
		row.ImageLicenseURL = images.LicenseURL
		row.ImageOriginalURL = images.OriginalURL
		if row.ImageOriginalURL == nil {
			row.ImageOriginalURL = images.MediumURL
		}
		row.ImageThumbnail = images.Thumbnail

		flat = append(flat, row)
	}
	return flat
}
