package enroll

import (
	"context"
	"crypto/x509/pkix"
	"errors"
	"log"
	"sync"

	"github.com/remiblancher/mtls-identity/internal/identity"
	"github.com/remiblancher/mtls-identity/internal/keystore"
	"github.com/remiblancher/mtls-identity/internal/x509util"
)

// Orchestrator drives the end-to-end enrollment flow. At most one
// enrollment is in flight at a time; the non-idle state itself acts as
// the mutex. No identity is persisted until the full flow succeeds: a
// key generated by an aborted run is an orphan, deleted best-effort,
// and never becomes current.
type Orchestrator struct {
	mu         sync.Mutex
	state      State
	failReason string

	keys       keystore.SecureKeyStore
	identities identity.Store
	transport  Transport
}

// New creates an enrollment orchestrator.
func New(keys keystore.SecureKeyStore, identities identity.Store, transport Transport) *Orchestrator {
	return &Orchestrator{
		state:      StateIdle,
		keys:       keys,
		identities: identities,
		transport:  transport,
	}
}

// State returns the current state and, for Failed, the reason.
func (o *Orchestrator) State() (State, string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state, o.failReason
}

// Reset returns to Idle from a terminal state.
func (o *Orchestrator) Reset() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.state.Terminal() {
		return ErrNotTerminal
	}

	o.state = StateIdle
	o.failReason = ""
	return nil
}

// Start runs the full enrollment flow for a device and returns the
// installed identity. The flow is forward-only:
// Idle → Starting → GeneratingKeys → GeneratingCSR → SubmittingCSR →
// ReceivingCertificate → Completed, or Failed(reason) at any step.
func (o *Orchestrator) Start(ctx context.Context, deviceID, commonName string) (*identity.Identity, error) {
	o.mu.Lock()
	if o.state != StateIdle {
		o.mu.Unlock()
		return nil, ErrEnrollmentInFlight
	}
	o.state = StateStarting
	o.mu.Unlock()

	o.setState(StateGeneratingKeys)
	ref, err := o.keys.GenerateKeypair(ctx)
	if err != nil {
		return nil, o.fail(keystore.KeyRef{}, ReasonKeyGeneration, err)
	}

	o.setState(StateGeneratingCSR)
	signer, err := o.keys.Signer(ref)
	if err != nil {
		return nil, o.fail(ref, ReasonCSRGeneration, err)
	}

	csrDER, err := x509util.CreateCSR(x509util.CSRRequest{
		Subject: pkix.Name{CommonName: commonName},
		Signer:  signer,
	})
	if err != nil {
		return nil, o.fail(ref, ReasonCSRGeneration, err)
	}

	o.setState(StateSubmittingCSR)
	cert, err := o.transport.Submit(ctx, Request{
		CSR:        csrDER,
		DeviceID:   deviceID,
		CommonName: commonName,
	})
	if err != nil {
		var rejection *RejectionError
		switch {
		case errors.As(err, &rejection):
			return nil, o.fail(ref, rejection.Reason, err)
		case errors.Is(err, ErrMalformedResponse):
			return nil, o.fail(ref, ReasonCertificateParse, err)
		default:
			return nil, o.fail(ref, ReasonSubmission, err)
		}
	}

	o.setState(StateReceivingCertificate)
	id := &identity.Identity{
		Certificate: cert,
		KeyRef:      ref,
		Label:       identity.LabelForDevice(deviceID),
		Source:      identity.SourceEnrolled,
	}

	// Saving under the device label overwrites any installed identity's
	// record, so a failure past this point must put the old record back
	// before the orphan key is discarded.
	prev, err := o.identities.Load(id.Label)
	if err != nil && !errors.Is(err, identity.ErrIdentityNotFound) {
		return nil, o.fail(ref, ReasonIdentityInstall, err)
	}

	if err := o.identities.Save(id); err != nil {
		o.restore(prev, id.Label)
		return nil, o.fail(ref, ReasonIdentityInstall, err)
	}
	if err := o.identities.SetCurrent(id.Label); err != nil {
		o.restore(prev, id.Label)
		return nil, o.fail(ref, ReasonIdentityInstall, err)
	}

	o.setState(StateCompleted)
	log.Printf("enrollment completed: device=%s cn=%s serial=0x%X",
		deviceID, commonName, cert.SerialNumber.Bytes())

	return id, nil
}

// setState advances the state machine.
func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// restore undoes a half-finished install: the previous record is written
// back under the label, or the label is removed when the device had no
// identity before. Best-effort; the enrollment failure is what surfaces.
func (o *Orchestrator) restore(prev *identity.Identity, label string) {
	var err error
	if prev != nil {
		err = o.identities.Save(prev)
	} else {
		err = o.identities.Delete(label)
	}
	if err != nil {
		log.Printf("identity rollback failed for %s: %v", label, err)
	}
}

// fail records the terminal failure and discards the orphan key.
// The orphan never affects an already-installed identity.
func (o *Orchestrator) fail(ref keystore.KeyRef, reason string, err error) error {
	if !ref.IsZero() {
		if delErr := o.keys.DeleteKey(ref); delErr != nil {
			log.Printf("orphan key cleanup failed for %s: %v", ref.ID, delErr)
		}
	}

	o.mu.Lock()
	o.state = StateFailed
	o.failReason = reason
	o.mu.Unlock()

	log.Printf("enrollment failed: %s: %v", reason, err)
	return &Error{Reason: reason, Err: err}
}
