package store

// Resource binds a protected resource type to its read query. The SQL
// is fixed at compile time; user input never reaches query text.
type Resource struct {
	Type string
	SQL  string
}

// Resources enumerates every list-style resource the gateway serves,
// in route registration order. All are action "read".
var Resources = []Resource{
	{
		Type: "employees",
		SQL:  "SELECT * FROM enterprise.employees WHERE is_active = true ORDER BY last_name",
	},
	{
		Type: "customers",
		SQL:  "SELECT * FROM enterprise.customers WHERE is_active = true ORDER BY company_name",
	},
	{
		Type: "orders",
		SQL: `SELECT o.*, c.company_name
			FROM enterprise.orders o
			LEFT JOIN enterprise.customers c ON o.customer_id = c.id
			ORDER BY o.order_date DESC`,
	},
	{
		Type: "projects",
		SQL:  "SELECT * FROM enterprise.projects ORDER BY start_date DESC",
	},
	{
		Type: "departments",
		SQL:  "SELECT * FROM enterprise.departments ORDER BY name",
	},
	{
		Type: "products",
		SQL:  "SELECT * FROM enterprise.products WHERE is_active = true ORDER BY name",
	},
	{
		Type: "audit",
		SQL:  "SELECT * FROM enterprise.audit_log ORDER BY timestamp DESC LIMIT 100",
	},
}

// StatQueries back the aggregate stats resource.
var StatQueries = map[string]string{
	"employees":   "SELECT COUNT(*) FROM enterprise.employees WHERE is_active = true",
	"departments": "SELECT COUNT(*) FROM enterprise.departments",
	"customers":   "SELECT COUNT(*) FROM enterprise.customers WHERE is_active = true",
	"orders":      "SELECT COUNT(*) FROM enterprise.orders",
	"projects":    "SELECT COUNT(*) FROM enterprise.projects",
	"products":    "SELECT COUNT(*) FROM enterprise.products WHERE is_active = true",
}
