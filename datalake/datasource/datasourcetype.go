package datasource

// DataSource represents the origin of an extract file.
type DataSource string

const (
	// GrantsGov represents the grants.gov XML extract feed.
	GrantsGov DataSource = "grants.gov"
	// Synthetic represents locally generated fixture extracts.
	Synthetic DataSource = "synthetic"
)
