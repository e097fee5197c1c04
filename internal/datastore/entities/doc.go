// Package entities defines the GORM models of the running catalog schema.
//
// Positions are stored in degrees, positional errors in arcseconds, fluxes in
// Jansky and frequencies in Hz. Catalog entries are never physically removed;
// merged entries keep deleted=true and point at their group head.
package entities
