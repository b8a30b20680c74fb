// Provides platform-appropriate paths for pybox.
//
// Paths follow XDG conventions on Linux and platform-native conventions on
// macOS. The program name "pybox" is the subdirectory under each base path.
package paths
