// Package license is the UI-side license state container.
//
// A Module caches what the licensing backend knows about this installation (the
// stored license keys, the resolved status and the installation id) and exposes
// derived getters over that snapshot. The backend is reached through a Bridge,
// a request/response transport addressed by channel name:
//
//	license/get                 -> []LicenseKey
//	license/getStatus           -> LicenseStatus
//	license/getInstallationId   -> string
//	appdb/license/save {obj}    -> LicenseKey
//	license/remove {id}         -> nothing
//	license/createTrialLicense  -> LicenseKey
//
// State only changes through named reducers applied by Module.commit, so every
// transition can be logged and tested on its own. Actions (Init, Add, Remove,
// Sync) call the backend and then re-sync; Sync replaces licenses, status and the
// "now" snapshot wholesale. Getters never read the clock directly: days-left is
// computed against the snapshot taken by the last Sync.
//
// Typical use from a command line client:
//
//	client, _ := bridge.Dial(ctx, "ws://127.0.0.1:7421/bridge", bridge.DialOptions{})
//	mod := license.NewModule(client, notify.NewConsole(os.Stdout), flags)
//	if err := mod.Init(ctx); err != nil {
//		return err
//	}
//	fmt.Println(mod.IsUltimate(), mod.LicenseDaysLeft())
package license
