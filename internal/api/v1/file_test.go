package v1

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// taskFiles decodes the files column of a task payload into its URL list.
// A null column decodes to nil.
func taskFiles(t *testing.T, data map[string]interface{}) []string {
	t.Helper()
	raw, isString := data["files"].(string)
	if !isString {
		require.Nil(t, data["files"])
		return nil
	}
	var urls []string
	require.NoError(t, json.Unmarshal([]byte(raw), &urls))
	return urls
}

func TestCreateTaskWithAttachments(t *testing.T) {
	bearer, _ := registerUser(t, "uploader")

	resp := doMultipart(t, "POST", "/api/v1/tasks/", bearer,
		map[string]string{"title": "Holiday photos", "description": "two of them"},
		[]filePart{pngPart("one.png"), pngPart("two.png")})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	data := dataField(t, decodeBody(t, resp))
	urls := taskFiles(t, data)
	require.Len(t, urls, 2)
	assert.NotEqual(t, urls[0], urls[1], "each upload must get its own URL")

	// The stored list round-trips through a plain fetch.
	resp = doJSON(t, "GET", "/api/v1/tasks/"+data["_id"].(string), bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, urls, taskFiles(t, dataField(t, decodeBody(t, resp))))
}

func TestRemoveTaskFile(t *testing.T) {
	bearer, _ := registerUser(t, "detacher")

	resp := doMultipart(t, "POST", "/api/v1/tasks/", bearer,
		map[string]string{"title": "Shrinking album"},
		[]filePart{pngPart("keep.png"), pngPart("drop.png")})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := dataField(t, decodeBody(t, resp))
	id := data["_id"].(string)
	urls := taskFiles(t, data)
	require.Len(t, urls, 2)

	testMedia.reset()

	resp = doJSON(t, "PUT", "/api/v1/tasks/"+id+"/files", bearer, map[string]string{"url": urls[1]})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	left := taskFiles(t, dataField(t, decodeBody(t, resp)))
	assert.Equal(t, []string{urls[0]}, left)
	assert.Equal(t, []string{urls[1]}, testMedia.deleted())

	// Removing a URL the task does not reference is a 404 and touches no media.
	resp = doJSON(t, "PUT", "/api/v1/tasks/"+id+"/files", bearer, map[string]string{"url": urls[1]})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "File not found in task.", decodeBody(t, resp)["message"])
	assert.Len(t, testMedia.deleted(), 1)

	// Removing the last attachment stores NULL, never an empty array.
	resp = doJSON(t, "PUT", "/api/v1/tasks/"+id+"/files", bearer, map[string]string{"url": urls[0]})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, dataField(t, decodeBody(t, resp))["files"])
}

func TestUploadBatchIsAllOrNothing(t *testing.T) {
	bearer, _ := registerUser(t, "batcher")

	testMedia.reset()
	testMedia.failOn = "poison.png"
	defer testMedia.reset()

	resp := doMultipart(t, "POST", "/api/v1/tasks/", bearer,
		map[string]string{"title": "Doomed batch"},
		[]filePart{pngPart("fine1.png"), pngPart("poison.png"), pngPart("fine2.png")})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Every object that made it up was compensated away.
	assert.Len(t, testMedia.deleted(), 2)

	// And no task row was committed.
	resp = doJSON(t, "GET", "/api/v1/tasks/", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, dataField(t, decodeBody(t, resp))["tasks"], 0)
}

func TestUploadRejectsNonImages(t *testing.T) {
	bearer, _ := registerUser(t, "strictuploader")

	testMedia.reset()

	resp := doMultipart(t, "POST", "/api/v1/tasks/", bearer,
		map[string]string{"title": "Bad upload"},
		[]filePart{
			pngPart("good.png"),
			{field: "files", name: "script.exe", contentType: "application/octet-stream", data: []byte("MZ")},
		})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Validation happens before any upload, so nothing needed compensating.
	assert.Empty(t, testMedia.deleted())

	resp = doJSON(t, "GET", "/api/v1/tasks/", bearer, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, dataField(t, decodeBody(t, resp))["tasks"], 0)
}

func TestUploadRejectsOversizedBatch(t *testing.T) {
	bearer, _ := registerUser(t, "bulkuploader")

	files := make([]filePart, 21)
	for i := range files {
		files[i] = pngPart(string(rune('a'+i)) + ".png")
	}
	resp := doMultipart(t, "POST", "/api/v1/tasks/", bearer,
		map[string]string{"title": "Too many"}, files)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPutReplacesAttachments(t *testing.T) {
	bearer, _ := registerUser(t, "replacer")

	resp := doMultipart(t, "POST", "/api/v1/tasks/", bearer,
		map[string]string{"title": "Album v1"},
		[]filePart{pngPart("old.png")})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	data := dataField(t, decodeBody(t, resp))
	id := data["_id"].(string)
	oldURLs := taskFiles(t, data)
	require.Len(t, oldURLs, 1)

	testMedia.reset()

	resp = doMultipart(t, "PUT", "/api/v1/tasks/"+id, bearer,
		map[string]string{"title": "Album v2", "done": "false"},
		[]filePart{pngPart("new.png")})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	newURLs := taskFiles(t, dataField(t, decodeBody(t, resp)))
	require.Len(t, newURLs, 1)
	assert.NotEqual(t, oldURLs[0], newURLs[0])
	assert.Equal(t, oldURLs, testMedia.deleted(),
		"replacing the attachment list must release the superseded objects")

	// A full update without new uploads keeps the stored list.
	resp = doJSON(t, "PUT", "/api/v1/tasks/"+id, bearer, map[string]string{
		"title": "Album v2 renamed",
		"done":  "true",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, newURLs, taskFiles(t, dataField(t, decodeBody(t, resp))))
}
