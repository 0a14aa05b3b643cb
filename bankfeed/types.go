package bankfeed

import "encoding/json"

type CursorEntry struct {
	UpdatedSince string `json:"updated_since"`
	Cursor       string `json:"cursor"`
}

type CursorState struct {
	Accounts     CursorEntry `json:"accounts"`
	Transactions CursorEntry `json:"transactions"`
}

func DecodeCursorState(raw []byte) CursorState {
	if len(raw) == 0 {
		return CursorState{}
	}
	var state CursorState
	if err := json.Unmarshal(raw, &state); err != nil {
		return CursorState{}
	}
	return state
}

func EncodeCursorState(state CursorState) []byte {
	b, _ := json.Marshal(state)
	return b
}

type ConnectRequest struct {
	AccessToken     string `json:"accessToken"`
	ItemId          string `json:"itemId"`
	InstitutionName string `json:"institutionName"`
}

type ConnectionResponse struct {
	Status          string `json:"status"`
	ItemId          string `json:"itemId"`
	InstitutionName string `json:"institutionName"`
}

type StatusResponse struct {
	Connection        ConnectionResponse `json:"connection"`
	LastSyncAt        *string            `json:"lastSyncAt"`
	LastSuccessSyncAt *string            `json:"lastSuccessSyncAt"`
	LastSyncError     string             `json:"lastSyncError,omitempty"`
}

type SyncResult struct {
	AccountsSynced     int `json:"accountsSynced"`
	TransactionsSynced int `json:"transactionsSynced"`
	TransfersPaired    int `json:"transfersPaired"`
}
