package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/constitutional-platform/voting-registry/crypto/ethereum"
	"github.com/constitutional-platform/voting-registry/registry"
	"github.com/constitutional-platform/voting-registry/storage"
	"github.com/constitutional-platform/voting-registry/types"
	"github.com/constitutional-platform/voting-registry/util"
	"github.com/constitutional-platform/voting-registry/verifier"
	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
	"go.vocdoni.io/dvote/db/metadb"
	"go.vocdoni.io/dvote/log"
)

func init() {
	log.Init("error", "stdout", nil)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type apiTestEnv struct {
	server    *httptest.Server
	storage   *storage.Storage
	registry  *registry.Registry
	clock     *testClock
	admin     *ethereum.SignKeys
	registrar *ethereum.SignKeys
}

func newAPITestEnv(t *testing.T) *apiTestEnv {
	stg := storage.New(metadb.NewTest(t))

	admin := ethereum.NewSignKeys()
	qt.Assert(t, admin.Generate(), qt.IsNil)
	registrar := ethereum.NewSignKeys()
	qt.Assert(t, registrar.Generate(), qt.IsNil)

	access := registry.NewAccessControl(admin.Address(), stg)
	qt.Assert(t, access.Grant(admin.Address(), registrar.Address(), registry.RoleRegistrar), qt.IsNil)

	clock := &testClock{now: time.Unix(1700000000, 0)}
	reg := registry.New(stg, access, verifier.NewEligibility(nil), registry.Options{Now: clock.Now})

	a := &API{registry: reg, storage: stg}
	a.initRouter()
	server := httptest.NewServer(a.Router())
	t.Cleanup(server.Close)

	return &apiTestEnv{
		server:    server,
		storage:   stg,
		registry:  reg,
		clock:     clock,
		admin:     admin,
		registrar: registrar,
	}
}

// doRequest sends a JSON request and returns the status code and body.
func (e *apiTestEnv) doRequest(t *testing.T, method, path string, body any) (int, []byte) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		qt.Assert(t, err, qt.IsNil)
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	qt.Assert(t, err, qt.IsNil)
	resp, err := http.DefaultClient.Do(req)
	qt.Assert(t, err, qt.IsNil)
	defer func() { _ = resp.Body.Close() }()
	respBody, err := io.ReadAll(resp.Body)
	qt.Assert(t, err, qt.IsNil)
	return resp.StatusCode, respBody
}

func (e *apiTestEnv) signedCreateSession(t *testing.T, signer *ethereum.SignKeys, start, end int64) (*CreateSessionRequest, types.HexBytes) {
	req := &CreateSessionRequest{
		SessionID: util.RandomBytes(types.SessionIDLen),
		BillHash:  util.RandomBytes(types.BillHashLen),
		StartTime: start,
		EndTime:   end,
		Nonce:     uint64(util.RandomInt(1, 1<<30)),
	}
	sig, err := signer.SignEthereum(req.signaturePayload())
	qt.Assert(t, err, qt.IsNil)
	req.Signature = sig
	return req, req.SessionID
}

func TestPing(t *testing.T) {
	t.Parallel()
	env := newAPITestEnv(t)
	status, _ := env.doRequest(t, http.MethodGet, PingEndpoint, nil)
	qt.Assert(t, status, qt.Equals, http.StatusOK)
}

func TestCreateAndGetSession(t *testing.T) {
	t.Parallel()
	env := newAPITestEnv(t)
	t0 := env.clock.Now().Unix()

	req, sessionID := env.signedCreateSession(t, env.registrar, t0+3600, t0+90000)
	status, _ := env.doRequest(t, http.MethodPost, SessionsEndpoint, req)
	qt.Assert(t, status, qt.Equals, http.StatusOK)

	status, body := env.doRequest(t, http.MethodGet, SessionsEndpoint+"/"+sessionID.String(), nil)
	qt.Assert(t, status, qt.Equals, http.StatusOK)
	var session types.VotingSession
	qt.Assert(t, json.Unmarshal(body, &session), qt.IsNil)
	qt.Assert(t, session.BillHash, qt.DeepEquals, req.BillHash)
	qt.Assert(t, session.Finalized, qt.IsFalse)

	// Listing includes the new session.
	status, body = env.doRequest(t, http.MethodGet, SessionsEndpoint, nil)
	qt.Assert(t, status, qt.Equals, http.StatusOK)
	var list SessionListResponse
	qt.Assert(t, json.Unmarshal(body, &list), qt.IsNil)
	qt.Assert(t, len(list.Sessions), qt.Equals, 1)

	// Unknown sessions return a 404.
	status, _ = env.doRequest(t, http.MethodGet,
		SessionsEndpoint+"/"+types.HexBytes(util.RandomBytes(types.SessionIDLen)).String(), nil)
	qt.Assert(t, status, qt.Equals, http.StatusNotFound)
}

func TestCreateSessionUnauthorized(t *testing.T) {
	t.Parallel()
	env := newAPITestEnv(t)
	t0 := env.clock.Now().Unix()

	// A random key without the registrar role is rejected.
	stranger := ethereum.NewSignKeys()
	qt.Assert(t, stranger.Generate(), qt.IsNil)
	req, _ := env.signedCreateSession(t, stranger, t0+3600, t0+90000)
	status, body := env.doRequest(t, http.MethodPost, SessionsEndpoint, req)
	qt.Assert(t, status, qt.Equals, http.StatusForbidden)
	qt.Assert(t, string(body), qt.Contains, "required role")

	// A tampered signature does not authenticate anyone with the role.
	req2, _ := env.signedCreateSession(t, env.registrar, t0+3600, t0+90000)
	req2.BillHash = util.RandomBytes(types.BillHashLen)
	status, _ = env.doRequest(t, http.MethodPost, SessionsEndpoint, req2)
	qt.Assert(t, status, qt.Equals, http.StatusForbidden)
}

func TestCommitRevealFinalizeOverHTTP(t *testing.T) {
	t.Parallel()
	env := newAPITestEnv(t)
	t0 := env.clock.Now()

	// Create a roster and add one voter.
	voter := ethereum.NewSignKeys()
	qt.Assert(t, voter.Generate(), qt.IsNil)

	status, body := env.doRequest(t, http.MethodPost, RostersEndpoint, nil)
	qt.Assert(t, status, qt.Equals, http.StatusOK)
	var roster NewRosterResponse
	qt.Assert(t, json.Unmarshal(body, &roster), qt.IsNil)

	addReq := &AddParticipantsRequest{Participants: []RosterParticipant{
		{Key: voter.Address().Bytes(), Weight: 1},
	}}
	status, body = env.doRequest(t, http.MethodPost,
		fmt.Sprintf("/rosters/%s/participants", roster.RosterID), addReq)
	qt.Assert(t, status, qt.Equals, http.StatusOK)
	var rootResp RosterRootResponse
	qt.Assert(t, json.Unmarshal(body, &rootResp), qt.IsNil)
	qt.Assert(t, rootResp.Size, qt.Equals, 1)

	// Publish the roster root as the eligibility root.
	setRoot := &SetEligibilityRootRequest{Root: rootResp.Root, Nonce: 7}
	sig, err := env.admin.SignEthereum(setRoot.signaturePayload())
	qt.Assert(t, err, qt.IsNil)
	setRoot.Signature = sig
	status, _ = env.doRequest(t, http.MethodPost, EligibilityRootEndpoint, setRoot)
	qt.Assert(t, status, qt.Equals, http.StatusOK)

	// Fetch the voter's proof blob.
	status, body = env.doRequest(t, http.MethodGet,
		fmt.Sprintf("/rosters/%s/proof?key=%x", roster.RosterID, voter.Address().Bytes()), nil)
	qt.Assert(t, status, qt.Equals, http.StatusOK)
	var proofResp RosterProofResponse
	qt.Assert(t, json.Unmarshal(body, &proofResp), qt.IsNil)

	// Create the session and move inside the voting window.
	req, sessionID := env.signedCreateSession(t, env.registrar, t0.Unix()+3600, t0.Unix()+90000)
	status, _ = env.doRequest(t, http.MethodPost, SessionsEndpoint, req)
	qt.Assert(t, status, qt.Equals, http.StatusOK)
	env.clock.Set(t0.Add(2 * time.Hour))

	// Commit.
	secret := []byte("my-secret")
	commitment := registry.CommitmentDigest(sessionID, voter.Address(), types.ChoiceYes, secret)
	commitPath := fmt.Sprintf("/sessions/%s/commitments", sessionID)
	status, _ = env.doRequest(t, http.MethodPost, commitPath,
		&CommitVoteRequest{Commitment: commitment, Proof: proofResp.Blob})
	qt.Assert(t, status, qt.Equals, http.StatusOK)

	// Double commit is a conflict.
	status, _ = env.doRequest(t, http.MethodPost, commitPath,
		&CommitVoteRequest{Commitment: commitment, Proof: proofResp.Blob})
	qt.Assert(t, status, qt.Equals, http.StatusConflict)

	// Reveal after the window.
	env.clock.Set(t0.Add(26 * time.Hour))
	status, _ = env.doRequest(t, http.MethodPost,
		fmt.Sprintf("/sessions/%s/reveals", sessionID),
		&RevealVoteRequest{Voter: voter.Address().Bytes(), Choice: "yes", Secret: secret})
	qt.Assert(t, status, qt.Equals, http.StatusOK)

	// Tally summary.
	status, body = env.doRequest(t, http.MethodGet,
		fmt.Sprintf("/sessions/%s/tally", sessionID), nil)
	qt.Assert(t, status, qt.Equals, http.StatusOK)
	var summary registry.SessionSummary
	qt.Assert(t, json.Unmarshal(body, &summary), qt.IsNil)
	qt.Assert(t, summary.Session.Tally.Yes, qt.Equals, uint64(1))
	qt.Assert(t, summary.Reveals, qt.Equals, 1)
	qt.Assert(t, summary.Pending, qt.Equals, 0)

	// Finalize.
	fin := &FinalizeSessionRequest{Nonce: 9}
	sig, err = env.registrar.SignEthereum(fin.signaturePayload(sessionID))
	qt.Assert(t, err, qt.IsNil)
	fin.Signature = sig
	status, body = env.doRequest(t, http.MethodPost,
		fmt.Sprintf("/sessions/%s/finalize", sessionID), fin)
	qt.Assert(t, status, qt.Equals, http.StatusOK)
	var finResp FinalizeSessionResponse
	qt.Assert(t, json.Unmarshal(body, &finResp), qt.IsNil)
	qt.Assert(t, len(finResp.MerkleRoot), qt.Not(qt.Equals), 0)

	// A second finalize is a conflict.
	status, _ = env.doRequest(t, http.MethodPost,
		fmt.Sprintf("/sessions/%s/finalize", sessionID), fin)
	qt.Assert(t, status, qt.Equals, http.StatusConflict)
}

func TestRosterSizeAndDelete(t *testing.T) {
	t.Parallel()
	env := newAPITestEnv(t)

	status, body := env.doRequest(t, http.MethodPost, RostersEndpoint, nil)
	qt.Assert(t, status, qt.Equals, http.StatusOK)
	var roster NewRosterResponse
	qt.Assert(t, json.Unmarshal(body, &roster), qt.IsNil)

	addReq := &AddParticipantsRequest{Participants: []RosterParticipant{
		{Key: util.RandomBytes(20), Weight: 1},
		{Key: util.RandomBytes(20), Weight: 2},
	}}
	status, _ = env.doRequest(t, http.MethodPost,
		fmt.Sprintf("/rosters/%s/participants", roster.RosterID), addReq)
	qt.Assert(t, status, qt.Equals, http.StatusOK)

	status, body = env.doRequest(t, http.MethodGet,
		fmt.Sprintf("/rosters/%s/size", roster.RosterID), nil)
	qt.Assert(t, status, qt.Equals, http.StatusOK)
	var size RosterSizeResponse
	qt.Assert(t, json.Unmarshal(body, &size), qt.IsNil)
	qt.Assert(t, size.Size, qt.Equals, 2)

	status, _ = env.doRequest(t, http.MethodDelete,
		"/rosters/"+roster.RosterID, nil)
	qt.Assert(t, status, qt.Equals, http.StatusOK)

	// Gone afterwards.
	status, _ = env.doRequest(t, http.MethodGet,
		fmt.Sprintf("/rosters/%s/size", roster.RosterID), nil)
	qt.Assert(t, status, qt.Equals, http.StatusNotFound)
	status, _ = env.doRequest(t, http.MethodDelete,
		"/rosters/"+roster.RosterID, nil)
	qt.Assert(t, status, qt.Equals, http.StatusNotFound)
}

func TestPauseOverHTTP(t *testing.T) {
	t.Parallel()
	env := newAPITestEnv(t)
	t0 := env.clock.Now().Unix()

	pauseReq := &AdminRequest{Nonce: 1}
	sig, err := env.admin.SignEthereum(pauseReq.signaturePayload("pause"))
	qt.Assert(t, err, qt.IsNil)
	pauseReq.Signature = sig
	status, _ := env.doRequest(t, http.MethodPost, PauseEndpoint, pauseReq)
	qt.Assert(t, status, qt.Equals, http.StatusOK)

	status, body := env.doRequest(t, http.MethodGet, PausedEndpoint, nil)
	qt.Assert(t, status, qt.Equals, http.StatusOK)
	var paused PausedResponse
	qt.Assert(t, json.Unmarshal(body, &paused), qt.IsNil)
	qt.Assert(t, paused.Paused, qt.IsTrue)

	// Mutations are rejected while paused.
	req, _ := env.signedCreateSession(t, env.registrar, t0+3600, t0+90000)
	status, _ = env.doRequest(t, http.MethodPost, SessionsEndpoint, req)
	qt.Assert(t, status, qt.Equals, http.StatusServiceUnavailable)

	// Unpause and retry with the same inputs.
	unpauseReq := &AdminRequest{Nonce: 2}
	sig, err = env.admin.SignEthereum(unpauseReq.signaturePayload("unpause"))
	qt.Assert(t, err, qt.IsNil)
	unpauseReq.Signature = sig
	status, _ = env.doRequest(t, http.MethodPost, UnpauseEndpoint, unpauseReq)
	qt.Assert(t, status, qt.Equals, http.StatusOK)

	status, _ = env.doRequest(t, http.MethodPost, SessionsEndpoint, req)
	qt.Assert(t, status, qt.Equals, http.StatusOK)
}

func TestVerifyEndpoints(t *testing.T) {
	t.Parallel()
	env := newAPITestEnv(t)

	// Build a valid 2-hop delegation chain.
	keys := make([]*ethereum.SignKeys, 3)
	for i := range keys {
		keys[i] = ethereum.NewSignKeys()
		qt.Assert(t, keys[i].Generate(), qt.IsNil)
	}
	chain, err := verifier.NewDelegationChain([]common.Address{
		keys[0].Address(), keys[1].Address(), keys[2].Address(),
	})
	qt.Assert(t, err, qt.IsNil)
	blob, err := verifier.EncodeDelegationChain(chain)
	qt.Assert(t, err, qt.IsNil)

	status, _ := env.doRequest(t, http.MethodPost, VerifyDelegationEndpoint,
		&VerifyDelegationRequest{Proof: blob, Delegate: keys[2].Address().Bytes(), Depth: 2})
	qt.Assert(t, status, qt.Equals, http.StatusOK)

	// Excessive depth is rejected.
	status, _ = env.doRequest(t, http.MethodPost, VerifyDelegationEndpoint,
		&VerifyDelegationRequest{Proof: blob, Delegate: keys[2].Address().Bytes(), Depth: 11})
	qt.Assert(t, status, qt.Equals, http.StatusBadRequest)

	// Batch verification returns one result per pair.
	commitment := types.HexBytes(util.RandomBytes(types.CommitmentLen))
	validityBlob, err := verifier.EncodeVoteValidityProof(commitment)
	qt.Assert(t, err, qt.IsNil)
	status, body := env.doRequest(t, http.MethodPost, VerifyBatchEndpoint,
		&VerifyBatchRequest{
			Proofs:      []types.HexBytes{validityBlob, validityBlob},
			Commitments: []types.HexBytes{commitment, util.RandomBytes(types.CommitmentLen)},
		})
	qt.Assert(t, status, qt.Equals, http.StatusOK)
	var batch VerifyBatchResponse
	qt.Assert(t, json.Unmarshal(body, &batch), qt.IsNil)
	qt.Assert(t, batch.Results, qt.DeepEquals, []bool{true, false})

	// Mismatched lengths are rejected.
	status, _ = env.doRequest(t, http.MethodPost, VerifyBatchEndpoint,
		&VerifyBatchRequest{Proofs: []types.HexBytes{validityBlob}})
	qt.Assert(t, status, qt.Equals, http.StatusBadRequest)
}
