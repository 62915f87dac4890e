package model

// CatalogEntry describes one simulated sensor family.
type CatalogEntry struct {
	Name       string
	Properties []string
	Sensors    []string
}

// DefaultCatalog is the fixed, ordered list of observation types.
// Entry order matters: an observation type count of n selects the first n entries.
var DefaultCatalog = []CatalogEntry{
	{
		Name:       "temperature",
		Properties: []string{"temperature"},
		Sensors:    []string{"pr103j2", "tmp421", "tmp112", "tsys01"},
	},
	{
		Name:       "intensity",
		Properties: []string{"intensity"},
		Sensors:    []string{"tsl260rd", "mlx75305", "apds-9006-020", "tsl260rd", "ml8511"},
	},
	{
		Name:       "bmi160",
		Properties: []string{"orient_y", "orient_z", "accel_z", "orient_x", "accel_y", "accel_x"},
		Sensors:    []string{"bmi160"},
	},
	{
		Name:       "htu21d",
		Properties: []string{"temperature", "humidity"},
		Sensors:    []string{"htu21d", "sht25", "hih6130"},
	},
	{
		Name:       "pressure",
		Properties: []string{"temperature", "pressure"},
		Sensors:    []string{"hmc5883l", "bmp180", "lps25h"},
	},
	{
		Name:       "humidity",
		Properties: []string{"humidity"},
		Sensors:    []string{"hih4030"},
	},
	{
		Name:       "gas_concentration",
		Properties: []string{"o3", "co", "reducing_gases", "h2s", "no2", "so2", "oxidizing_gases"},
		Sensors:    []string{"chemsense"},
	},
	{
		Name:       "magnetic_field",
		Properties: []string{"x", "y", "z"},
		Sensors:    []string{"mma8452q", "hmc5883l"},
	},
}
