package services

// Services defined in this package:
// - AuthService: registration with email codes, login, password reset, staff accounts
// - ApplicationService: admission applications and their approval into students
// - StudentService: student records, yearly promotion and graduation
// - AcademicService: semester results and automatic semester advancement
// - PaymentService: fee orders, gateway verification and webhooks
// - FileService: document slots backed by blob storage
