package httpapi

import (
	"net/http"
)

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	u, err := h.users.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserOut(u))
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	token, err := h.users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token, "tokenType": "bearer"})
}

func (h *handler) getPIN(w http.ResponseWriter, r *http.Request) {
	pin, err := h.users.GetPIN(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"pin": pin})
}

func (h *handler) updatePIN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PIN string `json:"pin"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := h.users.UpdatePIN(r.Context(), UserIDFrom(r.Context()), req.PIN); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "PIN updated successfully")
}

func (h *handler) resetPIN(w http.ResponseWriter, r *http.Request) {
	if err := h.users.ResetPIN(r.Context(), UserIDFrom(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Reset email sent")
}

// forgotPassword answers the same way whether or not the account exists.
func (h *handler) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	h.users.RequestPasswordReset(r.Context(), req.Email)
	writeMessage(w, http.StatusOK, "If the account exists, a reset link has been sent.")
}

func (h *handler) resetPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token       string `json:"token"`
		NewPassword string `json:"newPassword"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	ok, err := h.users.CompletePasswordReset(r.Context(), req.Token, req.NewPassword)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if !ok {
		badRequest(w, "Invalid or expired token.")
		return
	}
	writeMessage(w, http.StatusOK, "Password updated successfully.")
}
