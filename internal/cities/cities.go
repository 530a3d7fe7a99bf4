package cities

// Registry of monitored cities, grouped by region. Order within a region is
// the monitoring priority order; List flattens regions in declaration order.

// City is one monitored location.
type City struct {
	Name    string
	Country string
	Region  string
}

var regions = []string{
	"north_america",
	"south_america",
	"europe",
	"asia",
	"africa",
	"oceania",
}

var byRegion = map[string][]City{
	"north_america": {
		{Name: "New York", Country: "US", Region: "north_america"},
		{Name: "Los Angeles", Country: "US", Region: "north_america"},
		{Name: "Chicago", Country: "US", Region: "north_america"},
		{Name: "Toronto", Country: "CA", Region: "north_america"},
		{Name: "Mexico City", Country: "MX", Region: "north_america"},
	},
	"south_america": {
		{Name: "Sao Paulo", Country: "BR", Region: "south_america"},
		{Name: "Buenos Aires", Country: "AR", Region: "south_america"},
		{Name: "Bogota", Country: "CO", Region: "south_america"},
		{Name: "Lima", Country: "PE", Region: "south_america"},
	},
	"europe": {
		{Name: "London", Country: "GB", Region: "europe"},
		{Name: "Paris", Country: "FR", Region: "europe"},
		{Name: "Berlin", Country: "DE", Region: "europe"},
		{Name: "Madrid", Country: "ES", Region: "europe"},
		{Name: "Rome", Country: "IT", Region: "europe"},
	},
	"asia": {
		{Name: "Tokyo", Country: "JP", Region: "asia"},
		{Name: "Shanghai", Country: "CN", Region: "asia"},
		{Name: "Mumbai", Country: "IN", Region: "asia"},
		{Name: "Seoul", Country: "KR", Region: "asia"},
		{Name: "Singapore", Country: "SG", Region: "asia"},
	},
	"africa": {
		{Name: "Cairo", Country: "EG", Region: "africa"},
		{Name: "Lagos", Country: "NG", Region: "africa"},
		{Name: "Nairobi", Country: "KE", Region: "africa"},
	},
	"oceania": {
		{Name: "Sydney", Country: "AU", Region: "oceania"},
		{Name: "Auckland", Country: "NZ", Region: "oceania"},
	},
}

// List returns up to limit monitored city names in priority order. A limit
// of zero or less returns all cities.
func List(limit int) []string {
	names := make([]string, 0, 24)
	for _, region := range regions {
		for _, c := range byRegion[region] {
			names = append(names, c.Name)
		}
	}
	if limit > 0 && limit < len(names) {
		names = names[:limit]
	}
	return names
}

// ByRegion returns city names grouped by region.
func ByRegion() map[string][]string {
	out := make(map[string][]string, len(regions))
	for _, region := range regions {
		names := make([]string, 0, len(byRegion[region]))
		for _, c := range byRegion[region] {
			names = append(names, c.Name)
		}
		out[region] = names
	}
	return out
}

// Regions returns the region keys in declaration order.
func Regions() []string {
	out := make([]string, len(regions))
	copy(out, regions)
	return out
}
