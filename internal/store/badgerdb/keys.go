package badgerdb

import (
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Key layout. Timestamps and sequences are zero padded to 19 digits so
// lexicographic order is chronological. Actor and skill ids are free-form,
// so they are hex encoded ({hex:...}) and can never contain the separator.
//
//	proposal:{id}                                   -> proposalRecord
//	pending:{hex:proposer}:{hex:counterparty}:{hex:offered}:{hex:requested} -> proposal id
//	expiry:{expiresAt}:{id}                         -> empty, pending proposals only
//	actor:{hex:actor}:{createdAt}:{id}              -> role ('s' sent, 'r' received)
//	session:{id}                                    -> sessionRecord
//	by_proposal:{proposal id}                       -> session id
//	actor_session:{hex:actor}:{session id}          -> empty
//	msg:{session id}:{seq}                          -> messageRecord

func component(id string) string {
	return hex.EncodeToString([]byte(id))
}

func proposalKey(id uuid.UUID) []byte {
	return []byte("proposal:" + id.String())
}

func pendingKey(proposer, counterparty, offered, requested string) []byte {
	return []byte(fmt.Sprintf("pending:%s:%s:%s:%s",
		component(proposer), component(counterparty), component(offered), component(requested)))
}

const expiryPrefix = "expiry:"

func expiryKey(expiresAt time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s%019d:%s", expiryPrefix, expiresAt.UnixNano(), id))
}

func actorPrefix(actorID string) []byte {
	return []byte("actor:" + component(actorID) + ":")
}

func actorProposalKey(actorID string, createdAt time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("actor:%s:%019d:%s", component(actorID), createdAt.UnixNano(), id))
}

func sessionKey(id uuid.UUID) []byte {
	return []byte("session:" + id.String())
}

func byProposalKey(proposalID uuid.UUID) []byte {
	return []byte("by_proposal:" + proposalID.String())
}

func actorSessionPrefix(actorID string) []byte {
	return []byte("actor_session:" + component(actorID) + ":")
}

func actorSessionKey(actorID string, sessionID uuid.UUID) []byte {
	return []byte("actor_session:" + component(actorID) + ":" + sessionID.String())
}

func messagePrefix(sessionID uuid.UUID) []byte {
	return []byte("msg:" + sessionID.String() + ":")
}

func messageKey(sessionID uuid.UUID, seq int64) []byte {
	return []byte(fmt.Sprintf("msg:%s:%019d", sessionID, seq))
}
