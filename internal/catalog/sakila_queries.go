package catalog

// Window filters are relative to the latest rental or payment on record, so
// the historical dataset still answers "last week".
const (
	rentalAsOf  = `CROSS JOIN (SELECT MAX(rental_date) AS as_of FROM rental) ref`
	paymentAsOf = `CROSS JOIN (SELECT MAX(payment_date) AS as_of FROM payment) ref`
)

var sakilaTemplates = map[string]string{
	"search_films": `
		SELECT f.film_id, f.title, f.release_year, f.rating, f.length, f.rental_rate, c.name AS category
		  FROM film f
		  LEFT JOIN film_category fc ON fc.film_id = f.film_id
		  LEFT JOIN category c ON c.category_id = fc.category_id
		 WHERE (? IS NULL OR f.title LIKE ?)
		   AND (? IS NULL OR c.name = ?)
		   AND (? IS NULL OR f.rating = ?)
		   AND (? IS NULL OR EXISTS (
		         SELECT 1 FROM film_actor fa JOIN actor a ON a.actor_id = fa.actor_id
		          WHERE fa.film_id = f.film_id AND CONCAT(a.first_name, ' ', a.last_name) LIKE ?))
		 ORDER BY f.title
		 LIMIT ?`,

	"get_film_details": `
		SELECT f.film_id, f.title, f.description, f.release_year, f.rating, f.length,
		       f.rental_duration, f.rental_rate, f.replacement_cost, f.special_features,
		       l.name AS language,
		       (SELECT GROUP_CONCAT(c.name ORDER BY c.name SEPARATOR ', ')
		          FROM film_category fc JOIN category c ON c.category_id = fc.category_id
		         WHERE fc.film_id = f.film_id) AS categories,
		       (SELECT GROUP_CONCAT(CONCAT(a.first_name, ' ', a.last_name) ORDER BY a.last_name SEPARATOR ', ')
		          FROM film_actor fa JOIN actor a ON a.actor_id = fa.actor_id
		         WHERE fa.film_id = f.film_id) AS actors
		  FROM film f
		  JOIN language l ON l.language_id = f.language_id
		 WHERE f.film_id = ?`,

	"list_categories": `
		SELECT c.name, COUNT(fc.film_id) AS film_count
		  FROM category c
		  LEFT JOIN film_category fc ON fc.category_id = c.category_id
		 GROUP BY c.category_id, c.name
		 ORDER BY c.name`,

	"check_film_availability": `
		SELECT i.store_id, f.title,
		       COUNT(i.inventory_id) AS total_copies,
		       SUM(CASE WHEN EXISTS (
		             SELECT 1 FROM rental r WHERE r.inventory_id = i.inventory_id AND r.return_date IS NULL)
		           THEN 0 ELSE 1 END) AS available_copies
		  FROM inventory i
		  JOIN film f ON f.film_id = i.film_id
		 WHERE i.film_id = ?
		   AND (? IS NULL OR i.store_id = ?)
		 GROUP BY i.store_id, f.title
		 ORDER BY i.store_id`,

	"search_customers": `
		SELECT c.customer_id, c.first_name, c.last_name, c.email, c.store_id, c.active
		  FROM customer c
		 WHERE (? IS NULL OR CONCAT(c.first_name, ' ', c.last_name) LIKE ?)
		   AND (? IS NULL OR c.email = ?)
		   AND (? IS NULL OR c.store_id = ?)
		 ORDER BY c.last_name, c.first_name
		 LIMIT ?`,

	"get_customer_details": `
		SELECT c.customer_id, c.first_name, c.last_name, c.email, c.store_id, c.active, c.create_date,
		       a.address, a.district, ci.city, co.country, a.phone,
		       (SELECT COUNT(*) FROM rental r WHERE r.customer_id = c.customer_id) AS total_rentals,
		       (SELECT COALESCE(SUM(p.amount), 0) FROM payment p WHERE p.customer_id = c.customer_id) AS total_spent
		  FROM customer c
		  JOIN address a ON a.address_id = c.address_id
		  JOIN city ci ON ci.city_id = a.city_id
		  JOIN country co ON co.country_id = ci.country_id
		 WHERE (? IS NULL OR c.customer_id = ?)
		   AND (? IS NULL OR c.email = ?)
		 LIMIT 1`,

	"get_customer_rentals": `
		SELECT r.rental_id, f.title, r.rental_date, r.return_date, i.store_id
		  FROM rental r
		  JOIN inventory i ON i.inventory_id = r.inventory_id
		  JOIN film f ON f.film_id = i.film_id
		 WHERE r.customer_id = ?
		   AND (? = 'all'
		        OR (? = 'active' AND r.return_date IS NULL)
		        OR (? = 'returned' AND r.return_date IS NOT NULL))
		 ORDER BY r.rental_date DESC
		 LIMIT ?`,

	"get_overdue_rentals": `
		SELECT r.rental_id, c.customer_id, CONCAT(c.first_name, ' ', c.last_name) AS customer_name,
		       f.title, r.rental_date, i.store_id,
		       DATEDIFF(ref.as_of, r.rental_date) - f.rental_duration AS days_overdue
		  FROM rental r
		  JOIN inventory i ON i.inventory_id = r.inventory_id
		  JOIN film f ON f.film_id = i.film_id
		  JOIN customer c ON c.customer_id = r.customer_id
		  ` + rentalAsOf + `
		 WHERE r.return_date IS NULL
		   AND DATEDIFF(ref.as_of, r.rental_date) - f.rental_duration >= ?
		   AND (? IS NULL OR i.store_id = ?)
		 ORDER BY days_overdue DESC
		 LIMIT ?`,

	"get_popular_films": `
		SELECT f.film_id, f.title, c.name AS category, COUNT(r.rental_id) AS rental_count
		  FROM rental r
		  JOIN inventory i ON i.inventory_id = r.inventory_id
		  JOIN film f ON f.film_id = i.film_id
		  JOIN film_category fc ON fc.film_id = f.film_id
		  JOIN category c ON c.category_id = fc.category_id
		  ` + rentalAsOf + `
		 WHERE (? IS NULL OR r.rental_date >= ref.as_of - INTERVAL ? DAY)
		   AND (? IS NULL OR c.name = ?)
		   AND (? IS NULL OR i.store_id = ?)
		 GROUP BY f.film_id, f.title, c.name
		 ORDER BY rental_count DESC, f.title
		 LIMIT ?`,

	"get_revenue_summary.store": `
		SELECT st.store_id, COUNT(p.payment_id) AS payments, SUM(p.amount) AS revenue
		  FROM payment p
		  JOIN staff st ON st.staff_id = p.staff_id
		  ` + paymentAsOf + `
		 WHERE (? IS NULL OR p.payment_date >= ref.as_of - INTERVAL ? DAY)
		 GROUP BY st.store_id
		 ORDER BY st.store_id`,

	"get_revenue_summary.category": `
		SELECT c.name AS category, COUNT(p.payment_id) AS payments, SUM(p.amount) AS revenue
		  FROM payment p
		  JOIN rental r ON r.rental_id = p.rental_id
		  JOIN inventory i ON i.inventory_id = r.inventory_id
		  JOIN film_category fc ON fc.film_id = i.film_id
		  JOIN category c ON c.category_id = fc.category_id
		  ` + paymentAsOf + `
		 WHERE (? IS NULL OR p.payment_date >= ref.as_of - INTERVAL ? DAY)
		 GROUP BY c.category_id, c.name
		 ORDER BY revenue DESC`,

	"get_revenue_summary.month": `
		SELECT DATE_FORMAT(p.payment_date, '%Y-%m') AS month, COUNT(p.payment_id) AS payments, SUM(p.amount) AS revenue
		  FROM payment p
		  ` + paymentAsOf + `
		 WHERE (? IS NULL OR p.payment_date >= ref.as_of - INTERVAL ? DAY)
		 GROUP BY month
		 ORDER BY month`,

	"get_revenue_summary.staff": `
		SELECT st.staff_id, CONCAT(st.first_name, ' ', st.last_name) AS staff_name, st.store_id,
		       COUNT(p.payment_id) AS payments, SUM(p.amount) AS revenue
		  FROM payment p
		  JOIN staff st ON st.staff_id = p.staff_id
		  ` + paymentAsOf + `
		 WHERE (? IS NULL OR p.payment_date >= ref.as_of - INTERVAL ? DAY)
		 GROUP BY st.staff_id, staff_name, st.store_id
		 ORDER BY revenue DESC`,

	"get_store_stats": `
		SELECT s.store_id,
		       (SELECT COUNT(*) FROM inventory i WHERE i.store_id = s.store_id) AS inventory_count,
		       (SELECT COUNT(DISTINCT i.film_id) FROM inventory i WHERE i.store_id = s.store_id) AS film_count,
		       (SELECT COUNT(*) FROM customer c WHERE c.store_id = s.store_id) AS customer_count,
		       (SELECT COUNT(*) FROM customer c WHERE c.store_id = s.store_id AND c.active = 1) AS active_customers,
		       (SELECT COUNT(*) FROM rental r JOIN inventory i ON i.inventory_id = r.inventory_id
		         WHERE i.store_id = s.store_id AND r.return_date IS NULL) AS open_rentals,
		       (SELECT COALESCE(SUM(p.amount), 0) FROM payment p JOIN staff st ON st.staff_id = p.staff_id
		         WHERE st.store_id = s.store_id) AS total_revenue
		  FROM store s
		 WHERE (? IS NULL OR s.store_id = ?)
		 ORDER BY s.store_id`,

	"get_actor_filmography": `
		SELECT CONCAT(a.first_name, ' ', a.last_name) AS actor, f.film_id, f.title, f.release_year, f.rating,
		       c.name AS category
		  FROM actor a
		  JOIN film_actor fa ON fa.actor_id = a.actor_id
		  JOIN film f ON f.film_id = fa.film_id
		  LEFT JOIN film_category fc ON fc.film_id = f.film_id
		  LEFT JOIN category c ON c.category_id = fc.category_id
		 WHERE CONCAT(a.first_name, ' ', a.last_name) LIKE ?
		 ORDER BY actor, f.title
		 LIMIT ?`,

	"get_top_customers.rentals": `
		SELECT c.customer_id, CONCAT(c.first_name, ' ', c.last_name) AS customer_name, c.store_id,
		       COUNT(r.rental_id) AS rentals
		  FROM customer c
		  JOIN rental r ON r.customer_id = c.customer_id
		  ` + rentalAsOf + `
		 WHERE (? IS NULL OR r.rental_date >= ref.as_of - INTERVAL ? DAY)
		   AND (? IS NULL OR c.store_id = ?)
		 GROUP BY c.customer_id, customer_name, c.store_id
		 ORDER BY rentals DESC, c.customer_id
		 LIMIT ?`,

	"get_top_customers.spending": `
		SELECT c.customer_id, CONCAT(c.first_name, ' ', c.last_name) AS customer_name, c.store_id,
		       SUM(p.amount) AS total_spent
		  FROM customer c
		  JOIN payment p ON p.customer_id = c.customer_id
		  ` + paymentAsOf + `
		 WHERE (? IS NULL OR p.payment_date >= ref.as_of - INTERVAL ? DAY)
		   AND (? IS NULL OR c.store_id = ?)
		 GROUP BY c.customer_id, customer_name, c.store_id
		 ORDER BY total_spent DESC, c.customer_id
		 LIMIT ?`,

	"get_customer_segments": `
		SELECT segment, COUNT(*) AS customers, ROUND(AVG(total_spent), 2) AS avg_spent,
		       ROUND(AVG(rentals), 1) AS avg_rentals
		  FROM (
		        SELECT c.customer_id,
		               COALESCE(SUM(p.amount), 0) AS total_spent,
		               COUNT(DISTINCT p.rental_id) AS rentals,
		               CASE WHEN COALESCE(SUM(p.amount), 0) >= 150 THEN 'high_value'
		                    WHEN COALESCE(SUM(p.amount), 0) >= 75 THEN 'regular'
		                    ELSE 'occasional' END AS segment
		          FROM customer c
		          LEFT JOIN payment p ON p.customer_id = c.customer_id
		         WHERE (? IS NULL OR c.store_id = ?)
		         GROUP BY c.customer_id
		       ) t
		 GROUP BY segment
		 ORDER BY avg_spent DESC`,

	"get_customer_activity": `
		SELECT DATE_FORMAT(r.rental_date, '%Y-%m') AS month,
		       COUNT(r.rental_id) AS rentals,
		       COALESCE(SUM(p.amount), 0) AS spent
		  FROM rental r
		  LEFT JOIN payment p ON p.rental_id = r.rental_id
		 WHERE r.customer_id = ?
		   AND (? IS NULL OR DATE(r.rental_date) >= ?)
		   AND (? IS NULL OR DATE(r.rental_date) <= ?)
		 GROUP BY month
		 ORDER BY month`,

	"get_inventory_turnover": `
		SELECT f.film_id, f.title, c.name AS category,
		       COUNT(DISTINCT i.inventory_id) AS copies,
		       COUNT(r.rental_id) AS rentals,
		       ROUND(COUNT(r.rental_id) / COUNT(DISTINCT i.inventory_id), 2) AS rentals_per_copy
		  FROM inventory i
		  JOIN film f ON f.film_id = i.film_id
		  LEFT JOIN film_category fc ON fc.film_id = f.film_id
		  LEFT JOIN category c ON c.category_id = fc.category_id
		  LEFT JOIN rental r ON r.inventory_id = i.inventory_id
		 WHERE (? IS NULL OR i.store_id = ?)
		   AND (? IS NULL OR c.name = ?)
		 GROUP BY f.film_id, f.title, c.name
		 ORDER BY rentals_per_copy DESC, f.title
		 LIMIT ?`,

	"get_category_performance": `
		SELECT c.name AS category,
		       COUNT(r.rental_id) AS rentals,
		       COALESCE(SUM(p.amount), 0) AS revenue,
		       COUNT(DISTINCT r.customer_id) AS customers
		  FROM category c
		  JOIN film_category fc ON fc.category_id = c.category_id
		  JOIN inventory i ON i.film_id = fc.film_id
		  JOIN rental r ON r.inventory_id = i.inventory_id
		  LEFT JOIN payment p ON p.rental_id = r.rental_id
		  ` + rentalAsOf + `
		 WHERE (? IS NULL OR r.rental_date >= ref.as_of - INTERVAL ? DAY)
		   AND (? IS NULL OR i.store_id = ?)
		 GROUP BY c.category_id, c.name
		 ORDER BY revenue DESC`,

	"get_underperforming_films": `
		SELECT f.film_id, f.title, c.name AS category, f.rental_rate,
		       MAX(r.rental_date) AS last_rental_date,
		       DATEDIFF(ref.as_of, MAX(r.rental_date)) AS days_since_last_rental,
		       COUNT(DISTINCT i.inventory_id) AS inventory_count
		  FROM film f
		  JOIN inventory i ON i.film_id = f.film_id
		  LEFT JOIN rental r ON r.inventory_id = i.inventory_id
		  LEFT JOIN film_category fc ON fc.film_id = f.film_id
		  LEFT JOIN category c ON c.category_id = fc.category_id
		  ` + rentalAsOf + `
		 WHERE (? IS NULL OR i.store_id = ?)
		 GROUP BY f.film_id, f.title, c.name, f.rental_rate, ref.as_of
		HAVING last_rental_date IS NULL OR days_since_last_rental >= ?
		 ORDER BY days_since_last_rental DESC, f.title
		 LIMIT ?`,
}
