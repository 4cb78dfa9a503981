package license

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"licensebridge/pkg/contracts/domain"
)

type bridgeCall struct {
	Channel string
	Args    json.RawMessage
}

// fakeBackend answers bridge channels from memory and round-trips every value
// through JSON like a real transport would.
type fakeBackend struct {
	mu             sync.Mutex
	licenses       []LicenseKey
	status         *LicenseStatus
	installationID string
	nextID         int64
	calls          []bridgeCall
	failOn         map[string]error
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		status:         domain.DefaultStatus(),
		installationID: "3f0c5c1e-2f4b-4c55-9a57-7f3a1d1e9b10",
		nextID:         1,
		failOn:         map[string]error{},
	}
}

func (f *fakeBackend) Send(ctx context.Context, channel string, args interface{}, out interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	var raw json.RawMessage
	if args != nil {
		b, err := json.Marshal(args)
		if err != nil {
			return err
		}
		raw = b
	}
	f.calls = append(f.calls, bridgeCall{Channel: channel, Args: raw})

	if err := f.failOn[channel]; err != nil {
		return err
	}

	var result interface{}
	switch channel {
	case ChannelGet:
		result = append([]LicenseKey{}, f.licenses...)
	case ChannelGetStatus:
		result = f.status
	case ChannelGetInstallationID:
		result = f.installationID
	case ChannelSave:
		var p savePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		p.Obj.ID = f.nextID
		f.nextID++
		f.licenses = append(f.licenses, p.Obj)
		result = p.Obj
	case ChannelRemove:
		var p removePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return err
		}
		kept := f.licenses[:0]
		for _, l := range f.licenses {
			if l.ID != p.ID {
				kept = append(kept, l)
			}
		}
		f.licenses = kept
	case ChannelCreateTrial:
		trial := LicenseKey{ID: f.nextID, Key: "trial-1", LicenseType: domain.LicenseTypeTrial}
		f.nextID++
		f.licenses = append(f.licenses, trial)
		result = trial
	default:
		return fmt.Errorf("unknown channel %q", channel)
	}

	if out == nil {
		return nil
	}
	b, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

func (f *fakeBackend) channels() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.Channel)
	}
	return out
}

func (f *fakeBackend) callsOn(channel string) []bridgeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []bridgeCall
	for _, c := range f.calls {
		if c.Channel == channel {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeBackend) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

func (f *fakeBackend) setStatus(s *LicenseStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = s
}

func (f *fakeBackend) setLicenses(l ...LicenseKey) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.licenses = l
}
