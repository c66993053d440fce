package feedback

import (
	"fmt"
	"strings"
)

// Entity names a content type managed through the admin panel.
type Entity string

const (
	EntityArticle  Entity = "Article"
	EntityImage    Entity = "Image"
	EntityCategory Entity = "Category"
	EntityAuthor   Entity = "Author"
	EntityUser     Entity = "User"
)

// Operation names a CRUD outcome being announced.
type Operation string

const (
	OperationCreate  Operation = "create"
	OperationUpdate  Operation = "update"
	OperationDelete  Operation = "delete"
	OperationPublish Operation = "publish"
)

// CRUDTitle formats the standard success title for an entity operation.
// With a name: `Article "Budget 2026" created successfully!`; without:
// `Article created successfully!`.
func CRUDTitle(entity Entity, name string, op Operation) string {
	if name == "" {
		return fmt.Sprintf("%s %s successfully!", entity, pastTense(op))
	}
	return fmt.Sprintf("%s %q %s successfully!", entity, name, pastTense(op))
}

func pastTense(op Operation) string {
	s := string(op)
	if strings.HasSuffix(s, "e") {
		return s + "d"
	}
	return s + "ed"
}

var crudDescriptions = map[Operation]map[Entity]string{
	OperationCreate: {
		EntityArticle:  "The article has been saved as a draft and is ready for review.",
		EntityImage:    "The image is now available in the media library.",
		EntityCategory: "The category can now be assigned to articles.",
		EntityAuthor:   "The author profile is now available for bylines.",
		EntityUser:     "The user can now sign in to the admin panel.",
	},
	OperationUpdate: {
		EntityArticle:  "Changes to the article have been saved.",
		EntityImage:    "The image details have been updated.",
		EntityCategory: "The category has been updated across the site.",
		EntityAuthor:   "The author profile has been updated.",
		EntityUser:     "The user account has been updated.",
	},
	OperationDelete: {
		EntityArticle:  "The article has been removed and is no longer visible.",
		EntityImage:    "The image has been removed from the media library.",
		EntityCategory: "The category has been removed. Articles keep their other categories.",
		EntityAuthor:   "The author profile has been removed.",
		EntityUser:     "The user account has been removed.",
	},
	OperationPublish: {
		EntityArticle: "The article is now live on the public site.",
	},
}

var crudNavigation = map[Entity]SuggestedAction{
	EntityArticle:  {Label: "View Articles", Kind: ActionNavigate, Target: "/admin/articles"},
	EntityImage:    {Label: "Open Media Library", Kind: ActionNavigate, Target: "/admin/images"},
	EntityCategory: {Label: "View Categories", Kind: ActionNavigate, Target: "/admin/categories"},
	EntityAuthor:   {Label: "View Authors", Kind: ActionNavigate, Target: "/admin/authors"},
	EntityUser:     {Label: "View Users", Kind: ActionNavigate, Target: "/admin/users"},
}

// NotifyCRUD announces a successful entity operation through the sink.
// Create and publish outcomes carry a navigation action; updates and
// deletes do not.
func NotifyCRUD(sink Sink, entity Entity, name string, op Operation) string {
	opts := Options{
		Description: crudDescriptions[op][entity],
	}
	if op == OperationCreate || op == OperationPublish {
		if nav, ok := crudNavigation[entity]; ok {
			opts.Actions = []SuggestedAction{nav}
		}
	}
	return sink.Success(CRUDTitle(entity, name, op), opts)
}
