// Package api serves stored session records and their replay timelines over
// HTTP.
//
// Routes:
//
//	GET    /health
//	GET    /metrics
//	GET    /records
//	GET    /records/{id}
//	GET    /records/{id}/timeline
//	GET    /records/{id}/summary
//	DELETE /records/{id}
package api
