package v1

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateUsername(t *testing.T) {
	bearer, email := registerUser(t, "renameme")

	resp := doJSON(t, "PUT", "/api/v1/users/", bearer, map[string]string{
		"username": "renamed",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	data := dataField(t, decodeBody(t, resp))
	assert.Equal(t, "renamed", data["username"])
	assert.Equal(t, email, data["email"], "email must be untouched by a profile update")

	resp = doJSON(t, "GET", "/api/v1/users/me", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "renamed", dataField(t, decodeBody(t, resp))["username"])
}

func TestUpdateUsernameValidation(t *testing.T) {
	bearer, _ := registerUser(t, "shortname")

	resp := doJSON(t, "PUT", "/api/v1/users/", bearer, map[string]string{
		"username": "x",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func registerWithAvatar(t *testing.T, prefix string) (string, string) {
	t.Helper()

	email := uniqueEmail(prefix)
	resp := doMultipart(t, "POST", "/api/v1/auth/register", "", map[string]string{
		"username": prefix,
		"email":    email,
		"password": testPassword,
	}, []filePart{{field: "avatar", name: "me.png", contentType: "image/png", data: []byte("avatar-bytes")}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	bearer, ok := dataField(t, decodeBody(t, resp))["accessToken"].(string)
	require.True(t, ok)
	return bearer, email
}

func TestRegisterWithAvatarAndDeletePhoto(t *testing.T) {
	testMedia.reset()
	bearer, _ := registerWithAvatar(t, "avataruser")

	resp := doJSON(t, "GET", "/api/v1/users/me", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	photo, ok := dataField(t, decodeBody(t, resp))["photo"].(string)
	require.True(t, ok, "expected a photo URL after registering with an avatar")
	require.NotEmpty(t, photo)

	resp = doJSON(t, "DELETE", "/api/v1/users/photo", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, dataField(t, decodeBody(t, resp))["photo"])

	assert.Contains(t, testMedia.deleted(), photo, "the media object must be deleted with the reference")

	resp = doJSON(t, "GET", "/api/v1/users/me", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, dataField(t, decodeBody(t, resp))["photo"])
}

func TestReplacePhotoReleasesOldOne(t *testing.T) {
	testMedia.reset()
	bearer, _ := registerWithAvatar(t, "rephoto")

	resp := doJSON(t, "GET", "/api/v1/users/me", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	oldPhoto, _ := dataField(t, decodeBody(t, resp))["photo"].(string)
	require.NotEmpty(t, oldPhoto)

	resp = doMultipart(t, "PUT", "/api/v1/users/", bearer, nil,
		[]filePart{{field: "photo", name: "new.png", contentType: "image/png", data: []byte("new-photo")}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	newPhoto, _ := dataField(t, decodeBody(t, resp))["photo"].(string)
	require.NotEmpty(t, newPhoto)
	assert.NotEqual(t, oldPhoto, newPhoto)

	// The superseded object is released after the row commit.
	assert.Contains(t, testMedia.deleted(), oldPhoto)
}
