// Package insight defines the ImageInsight data model and the vision
// classifier collaborator that produces one insight per product photo.
package insight
