package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCRUDTitle(t *testing.T) {
	tests := []struct {
		entity Entity
		name   string
		op     Operation
		want   string
	}{
		{EntityArticle, "Budget 2026", OperationCreate, `Article "Budget 2026" created successfully!`},
		{EntityArticle, "", OperationCreate, "Article created successfully!"},
		{EntityCategory, "Politics", OperationUpdate, `Category "Politics" updated successfully!`},
		{EntityImage, "hero.jpg", OperationDelete, `Image "hero.jpg" deleted successfully!`},
		{EntityArticle, "Budget 2026", OperationPublish, `Article "Budget 2026" published successfully!`},
		{EntityUser, "", OperationDelete, "User deleted successfully!"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, CRUDTitle(tt.entity, tt.name, tt.op))
	}
}

func TestNotifyCRUD_NavigationActions(t *testing.T) {
	c := newTestCenter(t)

	id := NotifyCRUD(c, EntityArticle, "Budget 2026", OperationCreate)
	n := findActive(t, c, id)
	assert.Equal(t, LevelSuccess, n.Level)
	require.Len(t, n.Actions, 1)
	assert.Equal(t, ActionNavigate, n.Actions[0].Kind)
	assert.Equal(t, "/admin/articles", n.Actions[0].Target)
	assert.NotEmpty(t, n.Description)

	id = NotifyCRUD(c, EntityAuthor, "", OperationUpdate)
	n = findActive(t, c, id)
	assert.Empty(t, n.Actions)

	id = NotifyCRUD(c, EntityArticle, "Budget 2026", OperationPublish)
	n = findActive(t, c, id)
	require.Len(t, n.Actions, 1)
	assert.Equal(t, "View Articles", n.Actions[0].Label)
}
