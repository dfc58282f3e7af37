package catalog

import "strings"

var (
	Ratings      = []string{"G", "PG", "PG-13", "R", "NC-17"}
	RentalStatus = []string{"all", "active", "returned"}
	GroupBy      = []string{"store", "category", "month", "staff"}
	Periods      = []string{"all_time", "last_month", "last_week"}
	Metrics      = []string{"rentals", "spending"}
)

var (
	storeID = Arg{Name: "store_id", Description: "Store number (1 or 2).", Domain: IntRange{Min: 1, Max: 2}}
	limit   = Arg{Name: "limit", Description: "Maximum number of results (1-50, default 10).",
		Domain: IntRange{Min: 1, Max: 50, Default: def(10), ResultLimit: true}}
	period = Arg{Name: "period", Description: "Time window counted back from the latest activity.",
		Domain: Enum{Values: Periods, Default: "all_time"}}
	category = Arg{Name: "category", Description: "Genre name, e.g. Action or Comedy.", Domain: Text{MaxLen: 25}}
	filmID   = Arg{Name: "film_id", Description: "Film number.", Domain: IntRange{Min: 1, Max: 1_000_000}}
	custID   = Arg{Name: "customer_id", Description: "Customer number.", Domain: IntRange{Min: 1, Max: 1_000_000}}
)

func required(a Arg) Arg {
	a.Required = true
	return a
}

// Sakila returns the catalog of DVD rental intents.
func Sakila() (*Catalog, error) {
	return New(sakilaTools(), sakilaTemplates)
}

// MustSakila is Sakila for package-level wiring and tests.
func MustSakila() *Catalog {
	c, err := Sakila()
	if err != nil {
		panic(err)
	}
	return c
}

func sakilaTools() []Tool {
	return []Tool{
		{
			Name:        "search_films",
			Description: "Find films by title, genre, audience rating or performer name.",
			Args: []Arg{
				{Name: "title", Description: "Part of the film title.", Domain: Text{MaxLen: 128}},
				category,
				{Name: "rating", Description: "Audience rating.", Domain: Enum{Values: Ratings}},
				{Name: "actor_name", Description: "Part of a performer's name.", Domain: Text{MaxLen: 91}},
				limit,
			},
			bind: func(a Args) Binding {
				title, actor := a.Opt("title"), a.Opt("actor_name")
				return Binding{"search_films", []any{
					title, like(title),
					a.Opt("category"), a.Opt("category"),
					a.Opt("rating"), a.Opt("rating"),
					actor, like(actor),
					a.Int("limit"),
				}}
			},
		},
		{
			Name:        "get_film_details",
			Description: "Full details of one film: synopsis, length, pricing, genres and cast.",
			Args:        []Arg{required(filmID)},
			bind: func(a Args) Binding {
				return Binding{"get_film_details", []any{a.Int("film_id")}}
			},
		},
		{
			Name:        "list_categories",
			Description: "All film genres with the number of films in each.",
			bind: func(Args) Binding {
				return Binding{"list_categories", nil}
			},
		},
		{
			Name:        "check_film_availability",
			Description: "How many copies of a film each store holds and how many are on the shelf now.",
			Args:        []Arg{required(filmID), storeID},
			bind: func(a Args) Binding {
				return Binding{"check_film_availability", []any{
					a.Int("film_id"), a.Opt("store_id"), a.Opt("store_id"),
				}}
			},
		},
		{
			Name:        "search_customers",
			Description: "Find customers by name, contact address or home store.",
			Args: []Arg{
				{Name: "name", Description: "Part of the customer's name.", Domain: Text{MaxLen: 91}},
				{Name: "email", Description: "Exact contact address.", Domain: Text{MaxLen: 50}},
				storeID,
				limit,
			},
			bind: func(a Args) Binding {
				name := a.Opt("name")
				return Binding{"search_customers", []any{
					name, like(name),
					a.Opt("email"), a.Opt("email"),
					a.Opt("store_id"), a.Opt("store_id"),
					a.Int("limit"),
				}}
			},
		},
		{
			Name:        "get_customer_details",
			Description: "Profile, location and lifetime totals of one customer, looked up by number or contact address.",
			Args: []Arg{
				custID,
				{Name: "email", Description: "Exact contact address.", Domain: Text{MaxLen: 50}},
			},
			OneOf: []string{"customer_id", "email"},
			bind: func(a Args) Binding {
				return Binding{"get_customer_details", []any{
					a.Opt("customer_id"), a.Opt("customer_id"),
					a.Opt("email"), a.Opt("email"),
				}}
			},
		},
		{
			Name:        "get_customer_rentals",
			Description: "Rental history of one customer, newest first.",
			Args: []Arg{
				required(custID),
				{Name: "status", Description: "all, active (not yet returned) or returned.",
					Domain: Enum{Values: RentalStatus, Default: "all"}},
				limit,
			},
			bind: func(a Args) Binding {
				st := a.String("status")
				return Binding{"get_customer_rentals", []any{
					a.Int("customer_id"), st, st, st, a.Int("limit"),
				}}
			},
		},
		{
			Name:        "get_overdue_rentals",
			Description: "Rentals kept past their allowed duration, most overdue first.",
			Args: []Arg{
				{Name: "days_overdue", Description: "Minimum days past due (1-365, default 1).",
					Domain: IntRange{Min: 1, Max: 365, Default: def(1)}},
				storeID,
				limit,
			},
			bind: func(a Args) Binding {
				return Binding{"get_overdue_rentals", []any{
					a.Int("days_overdue"), a.Opt("store_id"), a.Opt("store_id"), a.Int("limit"),
				}}
			},
		},
		{
			Name:        "get_popular_films",
			Description: "Most rented films, optionally within a genre, store or recent window.",
			Args:        []Arg{period, category, storeID, limit},
			bind: func(a Args) Binding {
				days := periodDays(a.String("period"))
				return Binding{"get_popular_films", []any{
					days, days,
					a.Opt("category"), a.Opt("category"),
					a.Opt("store_id"), a.Opt("store_id"),
					a.Int("limit"),
				}}
			},
		},
		{
			Name:        "get_revenue_summary",
			Description: "Revenue and payment counts grouped by store, genre, month or staff member.",
			Args: []Arg{
				{Name: "group_by", Description: "store, category, month or staff.",
					Domain: Enum{Values: GroupBy, Default: "store"}},
				period,
			},
			bind: func(a Args) Binding {
				days := periodDays(a.String("period"))
				return Binding{"get_revenue_summary." + a.String("group_by"), []any{days, days}}
			},
		},
		{
			Name:        "get_store_stats",
			Description: "Stock, customer, open rental and revenue totals per store.",
			Args:        []Arg{storeID},
			bind: func(a Args) Binding {
				return Binding{"get_store_stats", []any{a.Opt("store_id"), a.Opt("store_id")}}
			},
		},
		{
			Name:        "get_actor_filmography",
			Description: "Films a performer appears in.",
			Args: []Arg{
				{Name: "actor_name", Description: "Part of the performer's name.", Required: true, Domain: Text{MaxLen: 91}},
				limit,
			},
			bind: func(a Args) Binding {
				return Binding{"get_actor_filmography", []any{like(a.Opt("actor_name")), a.Int("limit")}}
			},
		},
		{
			Name:        "get_top_customers",
			Description: "Customers ranked by number of rentals or by amount spent.",
			Args: []Arg{
				{Name: "metric", Description: "rentals or spending.", Domain: Enum{Values: Metrics, Default: "rentals"}},
				period,
				storeID,
				limit,
			},
			bind: func(a Args) Binding {
				days := periodDays(a.String("period"))
				return Binding{"get_top_customers." + a.String("metric"), []any{
					days, days, a.Opt("store_id"), a.Opt("store_id"), a.Int("limit"),
				}}
			},
		},
		{
			Name:        "get_customer_segments",
			Description: "Customers bucketed into high_value, regular and occasional spenders.",
			Args:        []Arg{storeID},
			bind: func(a Args) Binding {
				return Binding{"get_customer_segments", []any{a.Opt("store_id"), a.Opt("store_id")}}
			},
		},
		{
			Name:        "get_customer_activity",
			Description: "Month by month rentals and spending of one customer.",
			Args: []Arg{
				required(custID),
				{Name: "date_range", Description: "Optional {\"from\",\"to\"} days, YYYY-MM-DD.", Domain: DateRange{}},
			},
			bind: func(a Args) Binding {
				from, to := rangeBounds(a.Opt("date_range"))
				return Binding{"get_customer_activity", []any{a.Int("customer_id"), from, from, to, to}}
			},
		},
		{
			Name:        "get_inventory_turnover",
			Description: "How often each film's copies are rented, busiest first.",
			Args:        []Arg{storeID, category, limit},
			bind: func(a Args) Binding {
				return Binding{"get_inventory_turnover", []any{
					a.Opt("store_id"), a.Opt("store_id"),
					a.Opt("category"), a.Opt("category"),
					a.Int("limit"),
				}}
			},
		},
		{
			Name:        "get_category_performance",
			Description: "Rentals, revenue and distinct customers per genre.",
			Args:        []Arg{period, storeID},
			bind: func(a Args) Binding {
				days := periodDays(a.String("period"))
				return Binding{"get_category_performance", []any{
					days, days, a.Opt("store_id"), a.Opt("store_id"),
				}}
			},
		},
		{
			Name:        "get_underperforming_films",
			Description: "Films in stock that have not been rented for a while.",
			Args: []Arg{
				{Name: "days_not_rented", Description: "Days without a rental (1-365, default 30).",
					Domain: IntRange{Min: 1, Max: 365, Default: def(30)}},
				storeID,
				limit,
			},
			bind: func(a Args) Binding {
				return Binding{"get_underperforming_films", []any{
					a.Opt("store_id"), a.Opt("store_id"), a.Int("days_not_rented"), a.Int("limit"),
				}}
			},
		},
	}
}

// periodDays returns the window length for a period, nil for all_time.
func periodDays(p string) any {
	switch p {
	case "last_week":
		return int64(7)
	case "last_month":
		return int64(30)
	default:
		return nil
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// like turns a substring into a LIKE pattern, nil stays nil.
func like(v any) any {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return "%" + likeEscaper.Replace(s) + "%"
}

func rangeBounds(v any) (from, to any) {
	r, ok := v.(map[string]any)
	if !ok {
		return nil, nil
	}
	return r["from"], r["to"]
}
