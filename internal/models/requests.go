package models

// CreateFileRequest carries the metadata accompanying an upload. The
// binary itself arrives as a multipart part; identifiers and ownership
// are never taken from the payload.
type CreateFileRequest struct {
	Name        string  `json:"name" form:"name" validate:"required"`
	Description string  `json:"description" form:"description"`
	Classes     []int64 `json:"classes" form:"classes" validate:"omitempty,dive,min=1,max=12"`
	CategoryID  *string `json:"category_id" form:"category_id"`
}

// UpdateFileRequest applies a partial update. Nil fields are left
// untouched; an empty Description or CategoryID clears the value.
type UpdateFileRequest struct {
	Name        *string  `json:"name" validate:"omitempty,min=1"`
	Description *string  `json:"description"`
	Classes     *[]int64 `json:"classes" validate:"omitempty,dive,min=1,max=12"`
	CategoryID  *string  `json:"category_id"`
}

// CreateDocumentRequest carries a new document payload.
type CreateDocumentRequest struct {
	Title       string  `json:"title" validate:"required"`
	Description string  `json:"description"`
	Content     string  `json:"content"`
	Classes     []int64 `json:"classes" validate:"omitempty,dive,min=1,max=12"`
	CategoryID  *string `json:"category_id"`
}

// UpdateDocumentRequest applies a partial document update.
type UpdateDocumentRequest struct {
	Title       *string  `json:"title" validate:"omitempty,min=1"`
	Description *string  `json:"description"`
	Content     *string  `json:"content"`
	Classes     *[]int64 `json:"classes" validate:"omitempty,dive,min=1,max=12"`
	CategoryID  *string  `json:"category_id"`
}

// CreateLessonRequest carries a new lesson payload.
type CreateLessonRequest struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	ClassID     int      `json:"class_id" validate:"required,min=1,max=12"`
	FileIDs     []string `json:"file_ids" validate:"omitempty,max=10,dive,uuid4"`
}

// UpdateLessonRequest applies a partial lesson update.
type UpdateLessonRequest struct {
	Title       *string   `json:"title" validate:"omitempty,min=1"`
	Description *string   `json:"description"`
	ClassID     *int      `json:"class_id" validate:"omitempty,min=1,max=12"`
	FileIDs     *[]string `json:"file_ids" validate:"omitempty,max=10,dive,uuid4"`
}

// CreateCategoryRequest carries a new category payload. The slug is
// derived from the name, never supplied by the client.
type CreateCategoryRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description"`
	RootPath    string `json:"root_path"`
}

// UpdateCategoryRequest applies a partial category update.
type UpdateCategoryRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1"`
	Description *string `json:"description"`
}

// CreateExportRequest asks for an asynchronous catalog export.
type CreateExportRequest struct {
	Format string `json:"format" validate:"required,oneof=csv pdf"`
}

// ChangeRoleRequest carries a role change for an account.
type ChangeRoleRequest struct {
	Role UserRole `json:"role" validate:"required,oneof=ADMIN MANAGER TEACHER STUDENT"`
}
