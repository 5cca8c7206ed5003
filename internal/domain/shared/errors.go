package shared

import (
	"github.com/wuzhiguocarter/Aletheia/internal/errors"
)

// Domain error definitions. Callers attach ids with errors.From(...).WithDetails.
var (
	// Block errors
	ErrInvalidBlockID = errors.Validation(errors.CodeInvalidBlockID.String(), "invalid block ID: must be a valid UUID").
		WithResource("block").
		Build()
	ErrBlockNotFound = errors.NotFound(errors.CodeBlockNotFound.String(), "block not found").
		WithResource("block").
		Build()
	ErrInvalidBlockType = errors.Validation(errors.CodeInvalidBlockType.String(), "unknown block type").
		WithResource("block").
		Build()
	ErrVersionConflict = errors.Conflict(errors.CodeVersionConflict.String(), "block was modified concurrently").
		WithResource("block").
		Build()
	ErrVersionNotFound = errors.NotFound(errors.CodeVersionNotFound.String(), "block version not found").
		WithResource("block_version").
		Build()
	ErrInvalidPosition = errors.Validation(errors.CodeInvalidPosition.String(), "position must be finite").
		WithResource("block").
		Build()
	ErrInvalidConfidence = errors.Validation(errors.CodeInvalidConfidence.String(), "confidence must be between 0 and 1").
		WithResource("block").
		Build()
	ErrBlockOutsideProject = errors.Validation(errors.CodeBlockOutsideProject.String(), "block belongs to another project").
		WithResource("block").
		Build()

	// Relationship errors
	ErrInvalidRelationshipID = errors.Validation(errors.CodeInvalidRelationshipID.String(), "invalid relationship ID: must be a valid UUID").
		WithResource("relationship").
		Build()
	ErrRelationshipNotFound = errors.NotFound(errors.CodeRelationshipNotFound.String(), "relationship not found").
		WithResource("relationship").
		Build()
	ErrInvalidRelationshipType = errors.Validation(errors.CodeInvalidRelationshipType.String(), "unknown relationship type").
		WithResource("relationship").
		Build()
	ErrSelfRelationship = errors.Validation(errors.CodeSelfRelationship.String(), "a block cannot relate to itself").
		WithResource("relationship").
		Build()

	// Project errors
	ErrInvalidProjectID = errors.Validation(errors.CodeInvalidProjectID.String(), "invalid project ID: must be a valid UUID").
		WithResource("project").
		Build()
	ErrProjectNotFound = errors.NotFound(errors.CodeProjectNotFound.String(), "project not found").
		WithResource("project").
		Build()
	ErrInvalidWorkMode = errors.Validation(errors.CodeInvalidWorkMode.String(), "unknown work mode").
		WithResource("project").
		Build()
	ErrProjectForbidden = errors.NewError(errors.ErrorTypeForbidden, errors.CodeProjectForbidden.String(), "project belongs to another user").
		WithResource("project").
		Build()

	// Content errors
	ErrEmptyContent = errors.Validation(errors.CodeContentEmpty.String(), "content cannot be empty").
		WithResource("content").
		Build()
	ErrContentTooLong = errors.Validation(errors.CodeContentTooLong.String(), "content exceeds maximum length").
		WithResource("content").
		Build()
	ErrTagTooLong = errors.Validation(errors.CodeTagTooLong.String(), "tag exceeds maximum length").
		WithResource("tags").
		Build()
	ErrEmptyTitle = errors.Validation(errors.CodeTitleEmpty.String(), "title cannot be empty").
		WithResource("project").
		Build()
	ErrTitleTooLong = errors.Validation(errors.CodeTitleTooLong.String(), "title exceeds maximum length").
		WithResource("project").
		Build()

	// User errors
	ErrEmptyUserID = errors.Validation(errors.CodeUserIDEmpty.String(), "user ID cannot be empty").
		WithResource("user").
		Build()
)

// BlockNotFound returns ErrBlockNotFound annotated with the missing id.
func BlockNotFound(id BlockID) error {
	return errors.From(ErrBlockNotFound).WithDetailsf("block %s", id).Build()
}

// RelationshipNotFound returns ErrRelationshipNotFound annotated with the missing id.
func RelationshipNotFound(id RelationshipID) error {
	return errors.From(ErrRelationshipNotFound).WithDetailsf("relationship %s", id).Build()
}

// ProjectNotFound returns ErrProjectNotFound annotated with the missing id.
func ProjectNotFound(id ProjectID) error {
	return errors.From(ErrProjectNotFound).WithDetailsf("project %s", id).Build()
}

// VersionConflict reports the version the caller expected and the one stored.
func VersionConflict(id BlockID, expected, actual int) error {
	return errors.From(ErrVersionConflict).
		WithDetailsf("block %s: expected version %d, found %d", id, expected, actual).
		Build()
}

// TagTooLong returns ErrTagTooLong annotated with the offending length.
func TagTooLong(length int) error {
	return errors.From(ErrTagTooLong).WithDetailsf("tag is %d bytes, limit %d", length, MaxTagLength).Build()
}
