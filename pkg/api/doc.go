// Package api holds the JSON plumbing shared by the relay's auxiliary
// endpoints: session storage, exports, feedback and the log viewer.
//
// Handlers decode bodies with DecodeJSON and report failures with
// WriteError. Any error that is not an *Error is answered with a generic
// 500 so internal details never reach the client:
//
//	var req saveRequest
//	if err := api.DecodeJSON(r, maxBody, &req); err != nil {
//	    api.WriteError(w, err)
//	    return
//	}
//	api.WriteJSON(w, http.StatusOK, resp)
package api
