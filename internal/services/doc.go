// Package services holds the daemon's business logic.
//
// LicenseService answers the license bridge channels from the app database:
//
//	license/get                  every stored key
//	license/getStatus            the resolved edition
//	license/getInstallationId    stable per-installation id
//	appdb/license/save           insert or update {obj}
//	license/remove               delete {id}
//	license/createTrialLicense   one trial per installation
//
// Mutations publish license.changed events so open UI windows can resync.
// HealthService reports liveness and readiness of the database, the event hub and
// the bridge.
package services
