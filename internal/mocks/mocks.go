package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"chat-client/internal/models"
	"chat-client/internal/notify"
)

type EmitterMock struct {
	mock.Mock
}

func (m *EmitterMock) Emit(command string, payload any) error {
	args := m.Called(command, payload)
	return args.Error(0)
}

func (m *EmitterMock) RoomChanged(roomID string) {
	m.Called(roomID)
}

type NotifierMock struct {
	mock.Mock
}

func (m *NotifierMock) RoomCreated(room models.Room) {
	m.Called(room)
}

func (m *NotifierMock) RoomMessage(msg models.Message, roomName string) {
	m.Called(msg, roomName)
}

func (m *NotifierMock) RoomMessageOnScreen(msg models.Message) {
	m.Called(msg)
}

func (m *NotifierMock) PrivateMessage(msg models.PrivateMessage, onScreen bool) {
	m.Called(msg, onScreen)
}

func (m *NotifierMock) Presence(p models.RoomPresence, joined bool) {
	m.Called(p, joined)
}

type ToasterMock struct {
	mock.Mock
}

func (m *ToasterMock) Toast(level notify.Level, text string) {
	m.Called(level, text)
}

type SystemNotifierMock struct {
	mock.Mock
}

func (m *SystemNotifierMock) Permission() notify.Permission {
	args := m.Called()
	return args.Get(0).(notify.Permission)
}

func (m *SystemNotifierMock) RequestPermission() notify.Permission {
	args := m.Called()
	return args.Get(0).(notify.Permission)
}

func (m *SystemNotifierMock) Notify(n models.Notification) error {
	args := m.Called(n)
	return args.Error(0)
}

type SignalerMock struct {
	mock.Mock
}

func (m *SignalerMock) StartTyping() error {
	args := m.Called()
	return args.Error(0)
}

func (m *SignalerMock) StopTyping() error {
	args := m.Called()
	return args.Error(0)
}

type IdentityStoreMock struct {
	mock.Mock
}

func (m *IdentityStoreMock) Load(ctx context.Context) (models.Identity, error) {
	args := m.Called(ctx)
	var id models.Identity
	if val := args.Get(0); val != nil {
		id = val.(models.Identity)
	}
	return id, args.Error(1)
}

func (m *IdentityStoreMock) Save(ctx context.Context, id models.Identity) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *IdentityStoreMock) Clear(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type UploaderMock struct {
	mock.Mock
}

func (m *UploaderMock) Upload(ctx context.Context, path string) (models.FileDescriptor, error) {
	args := m.Called(ctx, path)
	var fd models.FileDescriptor
	if val := args.Get(0); val != nil {
		fd = val.(models.FileDescriptor)
	}
	return fd, args.Error(1)
}

type SessionMock struct {
	mock.Mock
}

func (m *SessionMock) Self() models.Identity {
	args := m.Called()
	return args.Get(0).(models.Identity)
}

func (m *SessionMock) ClientID() string {
	args := m.Called()
	return args.String(0)
}

func (m *SessionMock) JoinRoom(roomID string) error {
	args := m.Called(roomID)
	return args.Error(0)
}

func (m *SessionMock) SendFile(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

type TypingMock struct {
	mock.Mock
}

func (m *TypingMock) Keystroke(input string) {
	m.Called(input)
}

func (m *TypingMock) Submit() {
	m.Called()
}

func (m *TypingMock) Blur() {
	m.Called()
}

func (m *TypingMock) Focus() {
	m.Called()
}
