package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/mroshb/catchup/internal/models"
	"github.com/mroshb/catchup/internal/services"
)

type UserHandler struct {
	userService   *services.UserService
	friendService *services.FriendService
}

func NewUserHandler(userService *services.UserService, friendService *services.FriendService) *UserHandler {
	return &UserHandler{
		userService:   userService,
		friendService: friendService,
	}
}

type registerRequest struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Username    string `json:"username"`
	PhotoURL    string `json:"photoURL"`
	Timezone    string `json:"timezone"`
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	user, err := h.userService.Register(ctx, models.User{
		ID:          req.ID,
		DisplayName: req.DisplayName,
		Username:    req.Username,
		PhotoURL:    req.PhotoURL,
		Timezone:    req.Timezone,
	})
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, user)
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	user, err := h.userService.Get(ctx, mux.Vars(r)["id"])
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) UpdateTimezone(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	var req struct {
		Timezone string `json:"timezone"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondWithAppError(w, err)
		return
	}

	user, err := h.userService.UpdateTimezone(ctx, mux.Vars(r)["id"], req.Timezone)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, user)
}

func (h *UserHandler) GetFriends(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	friends, err := h.friendService.Friends(ctx, mux.Vars(r)["id"])
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, friends)
}

func (h *UserHandler) GetIncomingRequests(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	requests, err := h.friendService.IncomingRequests(ctx, mux.Vars(r)["id"])
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, requests)
}
