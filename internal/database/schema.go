package database

func schemaFor(d Dialect) string {
	if d == DialectPostgres {
		return PostgresSchema
	}
	return SQLiteSchema
}

// SQLiteSchema contains all SQL statements for creating tables and indexes
const SQLiteSchema = `
-- Country dimension, keyed by normalised name
CREATE TABLE IF NOT EXISTS country (
    country_id INTEGER PRIMARY KEY AUTOINCREMENT,
    country_name TEXT NOT NULL UNIQUE
);

-- City dimension, unique per country
CREATE TABLE IF NOT EXISTS city (
    city_id INTEGER PRIMARY KEY AUTOINCREMENT,
    city_name TEXT NOT NULL,
    country_id INTEGER NOT NULL,
    UNIQUE (city_name, country_id),
    FOREIGN KEY (country_id) REFERENCES country(country_id)
);

-- Origin observations, append-only
CREATE TABLE IF NOT EXISTS origin (
    origin_id INTEGER PRIMARY KEY AUTOINCREMENT,
    city_id INTEGER NOT NULL,
    lat REAL NOT NULL,
    long REAL NOT NULL,
    FOREIGN KEY (city_id) REFERENCES city(city_id)
);

CREATE TABLE IF NOT EXISTS botanist (
    botanist_id INTEGER PRIMARY KEY AUTOINCREMENT,
    email TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    phone TEXT
);

-- Plants keep the ID assigned by the telemetry source
CREATE TABLE IF NOT EXISTS plant (
    plant_id INTEGER PRIMARY KEY,
    name TEXT,
    scientific_name TEXT,
    origin_id INTEGER NOT NULL,
    botanist_id INTEGER NOT NULL,
    image_license_url TEXT,
    image_url TEXT,
    thumbnail TEXT,
    FOREIGN KEY (origin_id) REFERENCES origin(origin_id),
    FOREIGN KEY (botanist_id) REFERENCES botanist(botanist_id)
);

-- Sensor readings, append-only
CREATE TABLE IF NOT EXISTS plant_reading (
    plant_id INTEGER NOT NULL,
    soil_moisture REAL,
    temperature REAL,
    recording_taken TIMESTAMP,
    last_watered TIMESTAMP,
    FOREIGN KEY (plant_id) REFERENCES plant(plant_id)
);

CREATE INDEX IF NOT EXISTS idx_origin_coordinates ON origin(lat, long);
CREATE INDEX IF NOT EXISTS idx_plant_reading_plant ON plant_reading(plant_id);
CREATE INDEX IF NOT EXISTS idx_plant_reading_taken ON plant_reading(recording_taken);
`

// PostgresSchema is SQLiteSchema in Postgres types
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS country (
    country_id INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    country_name TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS city (
    city_id INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    city_name TEXT NOT NULL,
    country_id INTEGER NOT NULL REFERENCES country(country_id),
    UNIQUE (city_name, country_id)
);

CREATE TABLE IF NOT EXISTS origin (
    origin_id INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    city_id INTEGER NOT NULL REFERENCES city(city_id),
    lat DOUBLE PRECISION NOT NULL,
    long DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS botanist (
    botanist_id INTEGER GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY,
    email TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    phone TEXT
);

CREATE TABLE IF NOT EXISTS plant (
    plant_id INTEGER PRIMARY KEY,
    name TEXT,
    scientific_name TEXT,
    origin_id INTEGER NOT NULL REFERENCES origin(origin_id),
    botanist_id INTEGER NOT NULL REFERENCES botanist(botanist_id),
    image_license_url TEXT,
    image_url TEXT,
    thumbnail TEXT
);

CREATE TABLE IF NOT EXISTS plant_reading (
    plant_id INTEGER NOT NULL REFERENCES plant(plant_id),
    soil_moisture DOUBLE PRECISION,
    temperature DOUBLE PRECISION,
    recording_taken TIMESTAMPTZ,
    last_watered TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_origin_coordinates ON origin(lat, long);
CREATE INDEX IF NOT EXISTS idx_plant_reading_plant ON plant_reading(plant_id);
CREATE INDEX IF NOT EXISTS idx_plant_reading_taken ON plant_reading(recording_taken);
`
