// Package hotpepper queries the Hot Pepper gourmet API (Recruit Web
// Service) for restaurant listings.
//
// Searches are coordinate-based: a latitude/longitude pair plus a range
// code. The API pages at 100 results per request; GetAll walks the pages
// with a fixed interval between calls, the documented politeness for the
// free tier. An API key is required and travels as the key query
// parameter.
package hotpepper
