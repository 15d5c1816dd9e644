package plantapi

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plant-telemetry-pipeline/internal/models"
)

const testBaseURL = "https://plants.test/api"

func setupTestClient(t *testing.T, opts ...Option) *Client {
	t.Helper()

	hc := &http.Client{}
	httpmock.ActivateNonDefault(hc)
	t.Cleanup(httpmock.DeactivateAndReset)

	opts = append([]Option{
		WithHTTPClient(hc),
		WithBackoff(time.Millisecond, 5*time.Millisecond),
	}, opts...)
	return NewClient(testBaseURL, opts...)
}

const plantBody = `{
	"plant_id": 8,
	"name": "Bird of paradise",
	"scientific_name": ["Heliconia schiedeana 'Fire and Ice'"],
	"soil_moisture": 15.5,
	"temperature": 11.3,
	"recording_taken": "2026-01-27T10:08:05.308991",
	"last_watered": "2026-01-26T13:12:19",
	"botanist": {"name": "Carl Linnaeus", "email": "carl.linnaeus@lnhm.co.uk", "phone": "(146)994-1635x35992"},
	"origin_location": {"city": "Edwardfurt", "country": "Liberia", "latitude": "6.12", "longitude": "-10.79"},
	"images": {"license_url": "https://creativecommons.org/licenses/by/2.0/", "original_url": "https://example.com/og.jpg", "thumbnail": "https://example.com/thumb.jpg"}
}`

func TestFetchPlant(t *testing.T) {
	client := setupTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/plants/8",
		httpmock.NewStringResponder(http.StatusOK, plantBody))

	record, err := client.FetchPlant(context.Background(), 8)
	require.NoError(t, err)

	require.NotNil(t, record.PlantID)
	assert.Equal(t, 8, *record.PlantID)
	assert.Equal(t, "Bird of paradise", *record.Name)
	assert.Equal(t, "Heliconia schiedeana 'Fire and Ice'", *record.ScientificName.First())
	assert.InDelta(t, 15.5, *record.SoilMoisture, 1e-9)
	require.NotNil(t, record.OriginLocation)
	assert.Equal(t, "6.12", *record.OriginLocation.Latitude.Ptr())
	require.NotNil(t, record.Botanist)
	assert.Equal(t, "carl.linnaeus@lnhm.co.uk", *record.Botanist.Email)

	outcome, kind := record.Classify()
	assert.Equal(t, models.OutcomeFound, outcome)
	assert.Empty(t, kind)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestFetchPlantSoftErrors(t *testing.T) {
	client := setupTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/plants/3",
		httpmock.NewStringResponder(http.StatusOK, `{"error": "plant sensor fault", "plant_id": 3}`))
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/plants/4",
		httpmock.NewStringResponder(http.StatusNotFound, `{"error": "plant not found", "plant_id": 4}`))
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/plants/5",
		httpmock.NewStringResponder(http.StatusNotFound, `not here`))

	record, err := client.FetchPlant(context.Background(), 3)
	require.NoError(t, err)
	outcome, kind := record.Classify()
	assert.Equal(t, models.OutcomeSoftAnomaly, outcome)
	assert.Equal(t, models.ErrorSensorFault, kind)

	record, err = client.FetchPlant(context.Background(), 4)
	require.NoError(t, err)
	outcome, _ = record.Classify()
	assert.Equal(t, models.OutcomeNotFound, outcome)

	record, err = client.FetchPlant(context.Background(), 5)
	require.NoError(t, err)
	outcome, _ = record.Classify()
	assert.Equal(t, models.OutcomeNotFound, outcome)
	assert.Equal(t, 5, *record.PlantID)
}

func TestFetchPlantScalarScientificName(t *testing.T) {
	client := setupTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/plants/2",
		httpmock.NewStringResponder(http.StatusOK, `{"plant_id": 2, "name": "Fern", "scientific_name": "Pteridium aquilinum", "origin_location": {"latitude": 51.5, "longitude": -0.12}}`))

	record, err := client.FetchPlant(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "Pteridium aquilinum", *record.ScientificName.First())
	assert.Equal(t, "51.5", *record.OriginLocation.Latitude.Ptr())
	assert.Nil(t, record.Botanist)
}

func TestFetchPlantMalformedNumbers(t *testing.T) {
	client := setupTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/plants/6",
		httpmock.NewStringResponder(http.StatusOK, `{"plant_id": "six", "name": "Fern", "temperature": "error", "soil_moisture": "22.4"}`))

	record, err := client.FetchPlant(context.Background(), 6)
	require.NoError(t, err)
	assert.Equal(t, 6, *record.PlantID)
	assert.Nil(t, record.Temperature)
	require.NotNil(t, record.SoilMoisture)
	assert.Equal(t, 22.4, *record.SoilMoisture)
	assert.Equal(t, "Fern", *record.Name)
}

func TestFetchPlantRetriesServerErrors(t *testing.T) {
	client := setupTestClient(t)

	calls := 0
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/plants/1",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls < 3 {
				return httpmock.NewStringResponse(http.StatusBadGateway, "bad gateway"), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"plant_id": 1, "name": "Rose"}`), nil
		})

	record, err := client.FetchPlant(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "Rose", *record.Name)
	assert.Equal(t, 3, calls)
}

func TestFetchPlantRetriesRateLimit(t *testing.T) {
	client := setupTestClient(t)

	calls := 0
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/plants/1",
		func(req *http.Request) (*http.Response, error) {
			calls++
			if calls == 1 {
				return httpmock.NewStringResponse(http.StatusTooManyRequests, ""), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"plant_id": 1}`), nil
		})

	_, err := client.FetchPlant(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestFetchPlantTransportErrorAfterRetries(t *testing.T) {
	client := setupTestClient(t, WithRetries(2))
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/plants/9",
		httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := client.FetchPlant(context.Background(), 9)
	require.Error(t, err)

	var te *TransportError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 3, te.Attempts)
	assert.True(t, IsTransportError(err))
	assert.False(t, IsHTTPError(err))
	assert.Equal(t, 3, httpmock.GetTotalCallCount())
}

func TestFetchPlantHTTPErrorNotRetried(t *testing.T) {
	client := setupTestClient(t)
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/plants/7",
		httpmock.NewStringResponder(http.StatusForbidden, "forbidden"))

	_, err := client.FetchPlant(context.Background(), 7)
	require.Error(t, err)

	var he *HTTPError
	require.True(t, errors.As(err, &he))
	assert.Equal(t, http.StatusForbidden, he.StatusCode)
	assert.Equal(t, "forbidden", he.Body)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestFetchPlantContextCancelled(t *testing.T) {
	client := setupTestClient(t, WithBackoff(time.Second, time.Second))
	httpmock.RegisterResponder(http.MethodGet, testBaseURL+"/plants/1",
		httpmock.NewStringResponder(http.StatusServiceUnavailable, ""))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.FetchPlant(ctx, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParseRetryAfter(t *testing.T) {
	h := http.Header{}
	assert.Equal(t, time.Duration(0), parseRetryAfter(h))

	h.Set("Retry-After", "3")
	assert.Equal(t, 3*time.Second, parseRetryAfter(h))

	h.Set("Retry-After", "soon")
	assert.Equal(t, time.Duration(0), parseRetryAfter(h))
}
